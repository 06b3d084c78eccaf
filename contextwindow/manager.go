package contextwindow

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/internal/metrics"
)

// Conversation is an append-only, token-budgeted message log. All access
// is guarded by an internal mutex so a Conversation can be shared across
// goroutines handling the same session.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	counter  TokenCounter
	current  int
	counted  bool
}

// NewConversation creates an empty Conversation using counter to measure
// token usage.
func NewConversation(counter TokenCounter) *Conversation {
	if counter == nil {
		counter = RatioCounter{}
	}
	return &Conversation{counter: counter}
}

// NewConversationFromMessages seeds a Conversation with an existing
// message list, useful when a caller (e.g. a session store) already holds
// persisted messages and wants to resume budget enforcement without
// replaying every prior Append.
func NewConversationFromMessages(counter TokenCounter, msgs []Message) *Conversation {
	c := NewConversation(counter)
	c.messages = append(c.messages, msgs...)
	return c
}

// Messages returns a copy of the retained messages, oldest first.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Tokens returns the current total token count across retained messages.
func (c *Conversation) Tokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokensLocked()
}

func (c *Conversation) tokensLocked() int {
	if c.counted {
		return c.current
	}
	c.current = c.counter.CountMessagesTokens(c.messages)
	c.counted = true
	return c.current
}

func (c *Conversation) invalidate() {
	c.counted = false
}

// Manager enforces a token budget on a Conversation by applying a
// truncation Strategy whenever an append would exceed it.
type Manager struct {
	targetTokens      int
	strategy          Strategy
	slidingWindowSize int
	summarizer        Summarizer
	logger            *zap.Logger
	metrics           *metrics.Collector
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	TargetTokens      int
	Strategy          Strategy
	SlidingWindowSize int
	Summarizer        Summarizer
}

// NewManager creates a Manager from cfg.
func NewManager(cfg ManagerConfig, logger *zap.Logger, m *metrics.Collector) *Manager {
	if cfg.SlidingWindowSize <= 0 {
		cfg.SlidingWindowSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		targetTokens:      cfg.TargetTokens,
		strategy:          cfg.Strategy,
		slidingWindowSize: cfg.SlidingWindowSize,
		summarizer:        cfg.Summarizer,
		logger:            logger,
		metrics:           m,
	}
}

// Append adds msg to conv, then enforces the token budget via the
// configured strategy. It returns the number of messages dropped (for
// Summarize, the net reduction in message count: the messages folded away
// minus the one synthetic summary message that replaces them).
func (m *Manager) Append(conv *Conversation, msg Message) int {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.messages = append(conv.messages, msg)
	conv.invalidate()

	if conv.tokensLocked() <= m.targetTokens {
		return 0
	}

	var dropped int
	switch m.strategy {
	case LIFO:
		dropped = m.applyLIFOLocked(conv)
	case SlidingWindow:
		dropped = m.applySlidingWindowLocked(conv)
	case Priority:
		dropped = m.applyPriorityLocked(conv)
	case Summarize:
		dropped = m.applySummarizeLocked(conv)
	case FIFO:
		fallthrough
	default:
		dropped = m.applyFIFOLocked(conv)
	}

	conv.invalidate()
	m.metrics.RecordContextTruncation(string(m.strategy), conv.tokensLocked())
	m.logger.Debug("context window truncated",
		zap.String("strategy", string(m.strategy)),
		zap.Int("dropped", dropped),
		zap.Int("remaining", len(conv.messages)),
	)
	return dropped
}

// applyFIFOLocked drops the oldest messages first, skipping messages whose
// Priority is >= highPriorityFloor. If skipping leaves the budget still
// exceeded once every droppable message is gone, it falls back to
// dropping the oldest high-priority messages too so the budget always
// converges.
func (m *Manager) applyFIFOLocked(conv *Conversation) int {
	dropped := 0
	for conv.tokensLocked() > m.targetTokens && len(conv.messages) > 1 {
		idx := -1
		for i, msg := range conv.messages {
			if msg.Priority < highPriorityFloor {
				idx = i
				break
			}
		}
		if idx == -1 {
			idx = 0
		}
		conv.messages = append(conv.messages[:idx], conv.messages[idx+1:]...)
		conv.invalidate()
		dropped++
	}
	return dropped
}

// applyLIFOLocked drops the most recently added non-user messages first,
// preserving the latest user turn as long as possible.
func (m *Manager) applyLIFOLocked(conv *Conversation) int {
	dropped := 0
	for conv.tokensLocked() > m.targetTokens && len(conv.messages) > 1 {
		idx := -1
		for i := len(conv.messages) - 1; i >= 0; i-- {
			if conv.messages[i].Role != RoleUser {
				idx = i
				break
			}
		}
		if idx == -1 {
			// only user messages remain: keep the latest, drop the one before it
			idx = len(conv.messages) - 2
		}
		conv.messages = append(conv.messages[:idx], conv.messages[idx+1:]...)
		conv.invalidate()
		dropped++
	}
	return dropped
}

// applySlidingWindowLocked retains only the most recent slidingWindowSize
// messages.
func (m *Manager) applySlidingWindowLocked(conv *Conversation) int {
	if len(conv.messages) <= m.slidingWindowSize {
		return 0
	}
	dropped := len(conv.messages) - m.slidingWindowSize
	conv.messages = conv.messages[dropped:]
	return dropped
}

// applyPriorityLocked repeatedly drops the single lowest-priority message
// (oldest wins ties) until the budget is satisfied.
func (m *Manager) applyPriorityLocked(conv *Conversation) int {
	dropped := 0
	for conv.tokensLocked() > m.targetTokens && len(conv.messages) > 1 {
		idx := 0
		for i, msg := range conv.messages {
			if msg.Priority < conv.messages[idx].Priority {
				idx = i
			}
		}
		conv.messages = append(conv.messages[:idx], conv.messages[idx+1:]...)
		conv.invalidate()
		dropped++
	}
	return dropped
}

// applySummarizeLocked folds the oldest half of the conversation into a
// single pinned synthetic system message via m.summarizer. If no
// summarizer is configured, or summarization fails, it falls back to
// applySlidingWindowLocked.
func (m *Manager) applySummarizeLocked(conv *Conversation) int {
	if m.summarizer == nil || len(conv.messages) < 2 {
		return m.applySlidingWindowLocked(conv)
	}

	cut := len(conv.messages) / 2
	if cut < 1 {
		cut = 1
	}
	toSummarize := conv.messages[:cut]
	rest := conv.messages[cut:]

	summary, err := m.summarizer.Summarize(toSummarize)
	if err != nil {
		m.logger.Warn("summarization failed, falling back to sliding window", zap.Error(err))
		return m.applySlidingWindowLocked(conv)
	}

	pinned := Message{
		Role:     RoleSystem,
		Content:  summary,
		Priority: highPriorityFloor,
		Metadata: map[string]any{"synthetic_summary": true},
	}
	conv.messages = append([]Message{pinned}, rest...)
	return cut - 1 // cut messages folded away, replaced by 1 synthetic message
}

// sortByPriorityDesc is a helper retained for callers that want a
// priority-ordered snapshot without mutating the conversation.
func sortByPriorityDesc(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
