package contextwindow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenTokenMessage(role Role, i int) Message {
	// RatioCounter ~= len/4 + overhead; pad content so CountMessageTokens
	// lands close to 10 per message.
	return Message{Role: role, Content: strings.Repeat("x", 20) + string(rune('a'+i%26))}
}

func TestManager_SlidingWindowScenario(t *testing.T) {
	conv := NewConversation(RatioCounter{})
	m := NewManager(ManagerConfig{TargetTokens: 50, Strategy: SlidingWindow, SlidingWindowSize: 3}, nil, nil)

	for i := 0; i < 10; i++ {
		m.Append(conv, tenTokenMessage(RoleUser, i))
	}

	msgs := conv.Messages()
	assert.LessOrEqual(t, len(msgs), 3)
	assert.LessOrEqual(t, conv.Tokens(), 50)
}

func TestManager_FIFOPreservesHighPriority(t *testing.T) {
	conv := NewConversation(RatioCounter{})
	m := NewManager(ManagerConfig{TargetTokens: 30, Strategy: FIFO}, nil, nil)

	pinned := Message{Role: RoleSystem, Content: "system rules", Priority: highPriorityFloor}
	m.Append(conv, pinned)
	for i := 0; i < 10; i++ {
		m.Append(conv, tenTokenMessage(RoleUser, i))
	}

	msgs := conv.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "system rules", msgs[0].Content, "high priority message should survive FIFO pruning")
	assert.LessOrEqual(t, conv.Tokens(), 30)
}

func TestManager_LIFOPreservesLatestUser(t *testing.T) {
	conv := NewConversation(RatioCounter{})
	m := NewManager(ManagerConfig{TargetTokens: 30, Strategy: LIFO}, nil, nil)

	for i := 0; i < 5; i++ {
		m.Append(conv, tenTokenMessage(RoleAssistant, i))
	}
	latest := Message{Role: RoleUser, Content: "final question"}
	m.Append(conv, latest)

	msgs := conv.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "final question", last.Content)
}

func TestManager_PriorityDropsLowestFirst(t *testing.T) {
	conv := NewConversation(RatioCounter{})
	m := NewManager(ManagerConfig{TargetTokens: 30, Strategy: Priority}, nil, nil)

	low := tenTokenMessage(RoleUser, 0)
	low.Priority = 1
	high := tenTokenMessage(RoleUser, 1)
	high.Priority = 9

	m.Append(conv, low)
	m.Append(conv, high)
	for i := 2; i < 6; i++ {
		msg := tenTokenMessage(RoleUser, i)
		msg.Priority = 1
		m.Append(conv, msg)
	}

	found := false
	for _, msg := range conv.Messages() {
		if msg.Priority == 9 {
			found = true
		}
	}
	assert.True(t, found, "highest priority message should survive")
}

func TestManager_SummarizeFoldsOldestHalf(t *testing.T) {
	conv := NewConversation(RatioCounter{})
	m := NewManager(ManagerConfig{
		TargetTokens:      40,
		Strategy:          Summarize,
		SlidingWindowSize: 3,
		Summarizer:        ExtractiveSummarizer{},
	}, nil, nil)

	for i := 0; i < 8; i++ {
		m.Append(conv, tenTokenMessage(RoleUser, i))
	}

	msgs := conv.Messages()
	require.NotEmpty(t, msgs)
	assert.True(t, msgs[0].Metadata["synthetic_summary"] == true)
}

func TestRatioCounter_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, RatioCounter{}.CountTokens(""))
}
