package contextwindow

import "strings"

// Summarizer condenses a slice of messages into a single text summary used
// as a pinned synthetic system message by the Summarize strategy.
type Summarizer interface {
	Summarize(msgs []Message) (string, error)
}

// SummarizeFunc adapts a plain function to the Summarizer interface.
type SummarizeFunc func(msgs []Message) (string, error)

func (f SummarizeFunc) Summarize(msgs []Message) (string, error) { return f(msgs) }

// ExtractiveSummarizer builds a summary by concatenating a short prefix of
// each message's content, with no external model call. It is a
// dependency-free fallback a caller can wire in directly; production
// deployments are expected to supply a Summarizer backed by an LLM call
// instead.
type ExtractiveSummarizer struct {
	// MaxCharsPerMessage bounds how much of each message is kept; 0 means
	// a sane default of 120.
	MaxCharsPerMessage int
}

func (s ExtractiveSummarizer) Summarize(msgs []Message) (string, error) {
	limit := s.MaxCharsPerMessage
	if limit <= 0 {
		limit = 120
	}
	var b strings.Builder
	b.WriteString("Summary of earlier conversation:\n")
	for _, m := range msgs {
		content := m.Content
		if len(content) > limit {
			content = content[:limit] + "…"
		}
		b.WriteString("- ")
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
