package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/contextwindow"
)

// Manager wraps a Store and applies a contextwindow.Manager to keep each
// session's message list under a token budget as messages are appended.
//
// GetOrCreate is not atomic: a Get miss followed by a Save race can still
// create two sessions for the same ID under concurrent first access. This
// mirrors the upstream session manager this package is derived from and
// is an accepted tradeoff here, since session IDs are expected to be
// generated per-request rather than guessed.
type Manager struct {
	store   Store
	ctxMgr  *contextwindow.Manager
	counter contextwindow.TokenCounter
	logger  *zap.Logger
}

// NewManager creates a Manager. ctxMgr governs truncation of a session's
// Messages whenever AddMessage is called.
func NewManager(store Store, ctxMgr *contextwindow.Manager, counter contextwindow.TokenCounter, logger *zap.Logger) *Manager {
	if counter == nil {
		counter = contextwindow.RatioCounter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ctxMgr: ctxMgr, counter: counter, logger: logger}
}

// GetOrCreate fetches an existing session or creates a fresh one.
func (m *Manager) GetOrCreate(ctx context.Context, id, tenantID, userID string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	s = &Session{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Messages:  []contextwindow.Message{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddMessage appends msg to the session identified by id, then runs the
// configured contextwindow.Manager against the resulting message list if
// it exceeds budget.
func (m *Manager) AddMessage(ctx context.Context, id string, msg contextwindow.Message) error {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}

	s.Messages = append(s.Messages, msg)
	s.LastMessageAt = time.Now()

	if m.ctxMgr != nil {
		before := len(s.Messages)
		history := s.Messages[:before-1]
		conv := contextwindow.NewConversationFromMessages(m.counter, history)
		m.ctxMgr.Append(conv, msg)
		s.Messages = conv.Messages()
		if len(s.Messages) != before {
			m.logger.Info("session messages pruned",
				zap.String("session_id", id),
				zap.Int("before", before),
				zap.Int("after", len(s.Messages)),
			)
		}
	}

	s.Version++
	return m.store.Save(ctx, s)
}

// GetMessages returns the session's current message list.
func (m *Manager) GetMessages(ctx context.Context, id string) ([]contextwindow.Message, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Messages, nil
}

// ClearMessages empties a session's message list while keeping the
// session itself.
func (m *Manager) ClearMessages(ctx context.Context, id string) error {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Messages = []contextwindow.Message{}
	s.Version++
	return m.store.Save(ctx, s)
}
