package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldkit/shieldkit/contextwindow"
)

func TestManager_AddMessageAndRead(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	m := NewManager(store, nil, nil, nil)
	ctx := context.Background()

	s, err := m.GetOrCreate(ctx, "sess-1", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)
	created := s.CreatedAt

	err = m.AddMessage(ctx, "sess-1", contextwindow.Message{Role: contextwindow.RoleUser, Content: "hi"})
	require.NoError(t, err)

	msgs, err := m.GetMessages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, contextwindow.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, !got.UpdatedAt.Before(created))
}

func TestManager_AddMessageTruncatesOverBudget(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	ctxMgr := contextwindow.NewManager(contextwindow.ManagerConfig{
		TargetTokens:      50,
		Strategy:          contextwindow.SlidingWindow,
		SlidingWindowSize: 3,
	}, nil, nil)
	m := NewManager(store, ctxMgr, contextwindow.RatioCounter{}, nil)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx, "sess-2", "", "u2")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		err := m.AddMessage(ctx, "sess-2", contextwindow.Message{
			Role:    contextwindow.RoleUser,
			Content: "xxxxxxxxxxxxxxxxxxxxxxxxxx",
		})
		require.NoError(t, err)
	}

	msgs, err := m.GetMessages(ctx, "sess-2")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(msgs), 3)
}

func TestMemoryStore_SaveDetectsVersionConflict(t *testing.T) {
	store := NewMemoryStore(0, nil)
	ctx := context.Background()
	s := &Session{ID: "s1", Version: 1, CreatedAt: time.Now()}
	require.NoError(t, store.Save(ctx, s))

	stale := &Session{ID: "s1", Version: 1}
	err := store.Save(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_GetMissingReturnsNotFound(t *testing.T) {
	store := NewMemoryStore(0, nil)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
