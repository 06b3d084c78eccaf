// Package cache provides a small Backend contract for byte-value caching
// with TTL, satisfied by an in-process LRU-ish Memory backend and a
// prefixed Redis backend, plus a generic codec for typed values.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Backend is the minimal contract every cache implementation satisfies.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	// Update performs an atomic read-modify-write: fn receives the
	// current value (nil, false if absent) and returns the new value to
	// store, or ok=false to leave the entry untouched.
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte, exists bool) (next []byte, ok bool, err error)) error
}

// Codec (de)serializes typed values for storage as bytes.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// JSONCodec is the default Codec, backed by encoding/json.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }

// GetTyped decodes a cached value from backend into dest using codec.
// Returns ErrMiss unchanged if the key is absent.
func GetTyped(ctx context.Context, backend Backend, codec Codec, key string, dest any) error {
	if codec == nil {
		codec = JSONCodec{}
	}
	data, err := backend.Get(ctx, key)
	if err != nil {
		return err
	}
	return codec.Decode(data, dest)
}

// SetTyped encodes v with codec and stores it in backend under key.
func SetTyped(ctx context.Context, backend Backend, codec Codec, key string, v any, ttl time.Duration) error {
	if codec == nil {
		codec = JSONCodec{}
	}
	data, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return backend.Set(ctx, key, data, ttl)
}
