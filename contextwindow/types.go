// Package contextwindow enforces a token budget on an append-only
// conversation log via pluggable truncation strategies.
package contextwindow

import "time"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// Message is a single immutable conversation entry.
type Message struct {
	Role       Role
	Content    string
	Name       string
	ToolCallID string
	// Priority: higher means more retention value. FIFO skips dropping
	// messages with Priority >= highPriorityFloor (5).
	Priority int
	Metadata map[string]any

	tokenCount   int
	tokenCounted bool
	CreatedAt    time.Time
}

// Strategy names a truncation policy.
type Strategy string

const (
	FIFO          Strategy = "fifo"
	LIFO          Strategy = "lifo"
	SlidingWindow Strategy = "sliding_window"
	Priority      Strategy = "priority"
	Summarize     Strategy = "summarize"
)

// highPriorityFloor is the priority at/above which FIFO will not drop a
// message unless nothing else remains to drop.
const highPriorityFloor = 5
