package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/contextwindow"
)

// RedisStore persists sessions in Redis with a key TTL and optimistic
// locking via Session.Version, mirroring the Lua-scripted compare-and-set
// pattern used for atomic append.
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger

	saveScript   *redis.Script
	appendScript *redis.Script
}

// NewRedisStore creates a RedisStore. keyPrefix defaults to
// "shieldkit:session:" and ttl to 24h if zero.
func NewRedisStore(rdb *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "shieldkit:session:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
		saveScript: redis.NewScript(`
			local key = KEYS[1]
			local data = ARGV[1]
			local expectedVersion = tonumber(ARGV[2])
			local ttl = tonumber(ARGV[3])

			local current = redis.call('GET', key)
			if current then
				local session = cjson.decode(current)
				if session.version ~= expectedVersion then
					return -1
				end
			end
			redis.call('SET', key, data, 'EX', ttl)
			return 1
		`),
		appendScript: redis.NewScript(`
			local key = KEYS[1]
			local msgData = ARGV[1]
			local ttl = tonumber(ARGV[2])
			local now = ARGV[3]

			local current = redis.call('GET', key)
			if not current then
				return -1
			end
			local session = cjson.decode(current)
			table.insert(session.messages, cjson.decode(msgData))
			session.version = session.version + 1
			session.last_message_at = now
			session.updated_at = now
			redis.call('SET', key, cjson.encode(session), 'EX', ttl)
			return session.version
		`),
	}
}

func (r *RedisStore) key(id string) string { return r.keyPrefix + id }

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	return unmarshalSession(data)
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now()
	data, err := marshalSession(s)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	result, err := r.saveScript.Run(ctx, r.rdb, []string{r.key(s.ID)},
		data, s.Version-1, int(r.ttl.Seconds())).Int()
	if err != nil {
		return fmt.Errorf("session: redis save script: %w", err)
	}
	if result == -1 {
		return ErrVersionConflict
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.rdb.Del(ctx, r.key(id)).Err()
}

func (r *RedisStore) AppendMessage(ctx context.Context, id string, msg contextwindow.Message) error {
	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("session: marshal message: %w", err)
	}
	now := time.Now().Format(time.RFC3339)
	result, err := r.appendScript.Run(ctx, r.rdb, []string{r.key(id)},
		msgData, int(r.ttl.Seconds()), now).Int()
	if err != nil {
		return fmt.Errorf("session: redis append script: %w", err)
	}
	if result == -1 {
		return ErrNotFound
	}
	return nil
}
