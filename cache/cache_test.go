package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/clock"
)

func TestMemory_SetGetRoundTrip(t *testing.T) {
	m := NewMemory("test", 0, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), 0))
	val, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(val))
}

func TestMemory_TTLExpiry(t *testing.T) {
	mc := clock.NewMock(time.Now())
	m := NewMemory("test", 0, nil, nil).WithClock(mc)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), time.Second))
	mc.Advance(2 * time.Second)

	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_EvictsLRUBeyondMaxEntries(t *testing.T) {
	m := NewMemory("test", 2, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))
	_, _ = m.Get(ctx, "a") // touch a, making b the LRU victim
	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))

	_, err := m.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = m.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemory_UpdateAtomicRMW(t *testing.T) {
	m := NewMemory("test", 0, nil, nil)
	ctx := context.Background()

	err := m.Update(ctx, "counter", 0, func(current []byte, exists bool) ([]byte, bool, error) {
		if !exists {
			return []byte("1"), true, nil
		}
		return append(current, '1'), true, nil
	})
	require.NoError(t, err)

	val, err := m.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "1", string(val))
}

type fooDest struct {
	Name string `json:"name"`
}

func TestGetTypedSetTyped_JSONCodec(t *testing.T) {
	m := NewMemory("test", 0, nil, nil)
	ctx := context.Background()

	require.NoError(t, SetTyped(ctx, m, JSONCodec{}, "obj", fooDest{Name: "x"}, 0))

	var out fooDest
	require.NoError(t, GetTyped(ctx, m, JSONCodec{}, "obj", &out))
	assert.Equal(t, "x", out.Name)
}
