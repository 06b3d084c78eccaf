package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript implements the sliding-window algorithm as a single
// server-side atomic step: trim expired entries from a sorted set, count
// what remains, and (if under the limit) add the new entry, all under one
// Lua invocation so concurrent callers never interleave.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, "-inf", now_ms - window_ms)
local count = redis.call("ZCARD", key)

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local reset_ms = now_ms + window_ms
if oldest[2] ~= nil then
	reset_ms = tonumber(oldest[2]) + window_ms
end

if count >= limit then
	return {0, count, reset_ms}
end

redis.call("ZADD", key, now_ms, member)
redis.call("PEXPIRE", key, window_ms)
count = count + 1
if count == 1 then
	reset_ms = now_ms + window_ms
end
return {1, count, reset_ms}
`)

// tokenBucketScript refills a bucket stored as a hash of {tokens,
// last_refill_ms} and spends cost tokens if enough are available, all in
// one round trip.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate_per_sec = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local data = redis.call("HMGET", key, "tokens", "last_refill_ms")
local tokens = tonumber(data[1])
local last_refill_ms = tonumber(data[2])
if tokens == nil then
	tokens = capacity
	last_refill_ms = now_ms
end

local elapsed_sec = math.max(0, now_ms - last_refill_ms) / 1000.0
tokens = math.min(capacity, tokens + elapsed_sec * rate_per_sec)

if tokens < cost then
	redis.call("HSET", key, "tokens", tostring(tokens), "last_refill_ms", now_ms)
	redis.call("PEXPIRE", key, ttl_ms)
	return {0, tostring(tokens)}
end

tokens = tokens - cost
redis.call("HSET", key, "tokens", tostring(tokens), "last_refill_ms", now_ms)
redis.call("PEXPIRE", key, ttl_ms)
return {1, tostring(tokens)}
`)

// fixedWindowScript counts events in a counter whose expiry is set to the
// window length by the first INCR of each window, so expiry alone resets
// the count (no trim step needed, unlike the sliding-window sorted set).
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = redis.call("INCR", key)
if count == 1 then
	redis.call("PEXPIRE", key, window_ms)
end
local ttl = redis.call("PTTL", key)
if ttl < 0 then
	ttl = window_ms
end

if count > limit then
	return {0, count, ttl}
end
return {1, count, ttl}
`)

// leakyBucketScript drains a hash-stored {level, last_leak_ms} at a
// constant rate and admits cost units only if the drained level leaves
// room under capacity, mirroring the in-memory leaky-bucket semantics.
var leakyBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local leak_per_sec = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl_ms = tonumber(ARGV[5])

local data = redis.call("HMGET", key, "level", "last_leak_ms")
local level = tonumber(data[1])
local last_leak_ms = tonumber(data[2])
if level == nil then
	level = 0
	last_leak_ms = now_ms
end

local elapsed_sec = math.max(0, now_ms - last_leak_ms) / 1000.0
level = math.max(0, level - elapsed_sec * leak_per_sec)

if level + cost > capacity then
	redis.call("HSET", key, "level", tostring(level), "last_leak_ms", now_ms)
	redis.call("PEXPIRE", key, ttl_ms)
	return {0, tostring(level)}
end

level = level + cost
redis.call("HSET", key, "level", tostring(level), "last_leak_ms", now_ms)
redis.call("PEXPIRE", key, ttl_ms)
return {1, tostring(level)}
`)

// Redis is a distributed Backend sharing rate limit state across all
// instances of a process through a single *redis.Client. It satisfies the
// same linearizability contract as Memory, but across processes, at the
// cost of one round trip per check.
type Redis struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewRedis creates a Redis-backed rate limit Backend. keyPrefix namespaces
// this backend's keys away from other ShieldKit primitives sharing the
// same Redis instance (defaults to "shieldkit:ratelimit:").
func NewRedis(rdb *redis.Client, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "shieldkit:ratelimit:"
	}
	return &Redis{rdb: rdb, keyPrefix: keyPrefix}
}

func (r *Redis) key(k string) string {
	return r.keyPrefix + k
}

func (r *Redis) CheckSlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := time.Now()
	nowMS := now.UnixMilli()
	windowMS := window.Milliseconds()
	member := strconvItoaInt64(nowMS) + "-" + randomTiebreaker()

	res, err := slidingWindowScript.Run(ctx, r.rdb, []string{r.key(key)}, nowMS, windowMS, limit, member).Result()
	if err != nil {
		return Result{}, err
	}
	vals := res.([]interface{})
	allowed := vals[0].(int64) == 1
	count := vals[1].(int64)
	resetMS := vals[2].(int64)
	resetAt := time.UnixMilli(resetMS)

	remaining := int(int64(limit) - count)
	if remaining < 0 {
		remaining = 0
	}

	out := Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		out.RetryAfter = resetAt.Sub(now)
	}
	return out, nil
}

func (r *Redis) CheckTokenBucket(ctx context.Context, key string, capacity int, refillPerWindow int, window time.Duration, cost int) (Result, error) {
	now := time.Now()
	nowMS := now.UnixMilli()
	ratePerSec := float64(refillPerWindow) / window.Seconds()
	ttlMS := window.Milliseconds() * 2

	res, err := tokenBucketScript.Run(ctx, r.rdb, []string{r.key(key)}, nowMS, capacity, ratePerSec, cost, ttlMS).Result()
	if err != nil {
		return Result{}, err
	}
	vals := res.([]interface{})
	allowed := vals[0].(int64) == 1
	tokens := parseFloat(vals[1])

	out := Result{
		Allowed:   allowed,
		Limit:     capacity,
		Remaining: int(tokens),
		ResetAt:   now,
	}
	if !allowed {
		needed := float64(cost) - tokens
		retryAfter := time.Duration(needed / ratePerSec * float64(time.Second))
		out.RetryAfter = retryAfter
		out.ResetAt = now.Add(retryAfter)
	}
	return out, nil
}

func (r *Redis) CheckFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := time.Now()
	windowMS := window.Milliseconds()

	res, err := fixedWindowScript.Run(ctx, r.rdb, []string{r.key(key)}, limit, windowMS).Result()
	if err != nil {
		return Result{}, err
	}
	vals := res.([]interface{})
	allowed := vals[0].(int64) == 1
	count := vals[1].(int64)
	ttlMS := vals[2].(int64)
	resetAt := now.Add(time.Duration(ttlMS) * time.Millisecond)

	remaining := int(int64(limit) - count)
	if remaining < 0 {
		remaining = 0
	}

	out := Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !allowed {
		out.RetryAfter = resetAt.Sub(now)
	}
	return out, nil
}

func (r *Redis) CheckLeakyBucket(ctx context.Context, key string, capacity int, leakRate int, window time.Duration, cost int) (Result, error) {
	now := time.Now()
	nowMS := now.UnixMilli()
	leakPerSec := float64(leakRate) / window.Seconds()
	ttlMS := window.Milliseconds() * 2

	res, err := leakyBucketScript.Run(ctx, r.rdb, []string{r.key(key)}, nowMS, capacity, leakPerSec, cost, ttlMS).Result()
	if err != nil {
		return Result{}, err
	}
	vals := res.([]interface{})
	allowed := vals[0].(int64) == 1
	level := parseFloat(vals[1])

	out := Result{
		Allowed:   allowed,
		Limit:     capacity,
		Remaining: capacity - int(level),
		ResetAt:   now,
	}
	if !allowed {
		overflow := level + float64(cost) - float64(capacity)
		retryAfter := time.Duration(overflow / leakPerSec * float64(time.Second))
		out.RetryAfter = retryAfter
		out.ResetAt = now.Add(retryAfter)
	}
	return out, nil
}
