// Package session provides a TTL-bounded conversation session store with
// memory and Redis-backed implementations, and a manager that wires
// session growth into a contextwindow budget.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/contextwindow"
)

var (
	ErrNotFound       = errors.New("session: not found")
	ErrVersionConflict = errors.New("session: version conflict")
)

// Session is a persisted conversation.
type Session struct {
	ID            string                    `json:"id"`
	TenantID      string                    `json:"tenant_id,omitempty"`
	UserID        string                    `json:"user_id,omitempty"`
	Messages      []contextwindow.Message   `json:"messages"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
	Version       int                       `json:"version"`
	LastMessageAt time.Time                 `json:"last_message_at"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// Store is the persistence contract a SessionManager builds on. Save must
// perform an optimistic-lock check against Session.Version, returning
// ErrVersionConflict on mismatch. AppendMessage must be atomic with
// respect to concurrent Save/AppendMessage calls on the same ID.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, id string, msg contextwindow.Message) error
}

// MemoryStore is an in-process Store guarded by a single mutex. It is
// the default for tests and single-instance deployments.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *zap.Logger
}

// NewMemoryStore creates a MemoryStore. ttl of zero disables expiry.
func NewMemoryStore(ttl time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{sessions: make(map[string]*Session), ttl: ttl, logger: logger}
}

func (m *MemoryStore) expiredLocked(s *Session) bool {
	if m.ttl <= 0 {
		return false
	}
	return time.Since(s.UpdatedAt) > m.ttl
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || m.expiredLocked(s) {
		return nil, ErrNotFound
	}
	clone := *s
	clone.Messages = append([]contextwindow.Message(nil), s.Messages...)
	return &clone, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sessions[s.ID]
	if ok && !m.expiredLocked(existing) && existing.Version != s.Version-1 {
		return ErrVersionConflict
	}
	s.UpdatedAt = time.Now()
	clone := *s
	clone.Messages = append([]contextwindow.Message(nil), s.Messages...)
	m.sessions[s.ID] = &clone
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, id string, msg contextwindow.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || m.expiredLocked(s) {
		return ErrNotFound
	}
	s.Messages = append(s.Messages, msg)
	s.Version++
	now := time.Now()
	s.LastMessageAt = now
	s.UpdatedAt = now
	return nil
}

// marshalSession and unmarshalSession are shared by Redis-backed stores
// and Lua script argument encoding.
func marshalSession(s *Session) ([]byte, error) { return json.Marshal(s) }

func unmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &s, nil
}
