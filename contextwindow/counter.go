package contextwindow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const (
	englishCharsPerToken = 4.0
	chineseCharsPerToken = 1.5
	messageOverhead       = 4
	conversationOverhead  = 3
)

// TokenCounter counts tokens for text and messages. RatioCounter,
// RemoteCounter and the per-model counter returned by
// TikTokenCounter.ForModel satisfy this single interface; the manager is
// agnostic to which one it is given.
type TokenCounter interface {
	CountTokens(text string) int
	CountMessageTokens(msg Message) int
	CountMessagesTokens(msgs []Message) int
}

// RatioCounter approximates token counts from character counts, weighting
// CJK text more heavily than Latin text. It needs no external model data
// and is the safe default when no tokenizer library matches the target
// model.
type RatioCounter struct{}

func (RatioCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjk, other int
	for _, r := range text {
		if (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3040 && r <= 0x30FF) {
			cjk++
		} else {
			other++
		}
	}
	tokens := float64(cjk)/chineseCharsPerToken + float64(other)/englishCharsPerToken
	return int(tokens) + 1
}

func (c RatioCounter) CountMessageTokens(msg Message) int {
	tokens := messageOverhead + c.CountTokens(msg.Content)
	if msg.Name != "" {
		tokens += c.CountTokens(msg.Name)
	}
	if msg.ToolCallID != "" {
		tokens++
	}
	return tokens
}

func (c RatioCounter) CountMessagesTokens(msgs []Message) int {
	total := conversationOverhead
	for _, m := range msgs {
		total += c.CountMessageTokens(m)
	}
	return total
}

// TikTokenCounter counts tokens exactly for a given model using
// github.com/pkoukk/tiktoken-go. Models tiktoken does not recognize use the
// cl100k_base encoding; RatioCounter is used only when no encoding can be
// loaded.
type TikTokenCounter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
	fallback RatioCounter
}

// NewTikTokenCounter creates a TikTokenCounter. Encoders are resolved and
// cached lazily per model name on first use.
func NewTikTokenCounter() *TikTokenCounter {
	return &TikTokenCounter{encoders: make(map[string]*tiktoken.Tiktoken)}
}

func (t *TikTokenCounter) encoderFor(model string) *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()
	if enc, ok := t.encoders[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			t.encoders[model] = nil
			return nil
		}
	}
	t.encoders[model] = enc
	return enc
}

// ForModel returns a TokenCounter bound to a specific model name.
func (t *TikTokenCounter) ForModel(model string) TokenCounter {
	return &tiktokenBound{parent: t, model: model}
}

type tiktokenBound struct {
	parent *TikTokenCounter
	model  string
}

func (b *tiktokenBound) CountTokens(text string) int {
	enc := b.parent.encoderFor(b.model)
	if enc == nil {
		return b.parent.fallback.CountTokens(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func (b *tiktokenBound) CountMessageTokens(msg Message) int {
	tokens := messageOverhead + b.CountTokens(msg.Content)
	if msg.Name != "" {
		tokens += b.CountTokens(msg.Name)
	}
	return tokens
}

func (b *tiktokenBound) CountMessagesTokens(msgs []Message) int {
	total := conversationOverhead
	for _, m := range msgs {
		total += b.CountMessageTokens(m)
	}
	return total
}

// RemoteCounter delegates counting to an external HTTP endpoint exposing
// POST {texts:[...]} -> {tokens:[...]}. On a transport failure, a non-200
// status, or a response of the wrong length it falls back to RatioCounter so a flaky counting service degrades gracefully
// instead of blocking truncation decisions.
type RemoteCounter struct {
	Endpoint string
	Client   *http.Client
	fallback RatioCounter
}

// NewRemoteCounter creates a RemoteCounter pointed at endpoint.
func NewRemoteCounter(endpoint string) *RemoteCounter {
	return &RemoteCounter{Endpoint: endpoint, Client: &http.Client{Timeout: 2 * time.Second}}
}

type remoteCountRequest struct {
	Texts []string `json:"texts"`
}

type remoteCountResponse struct {
	Tokens []int `json:"tokens"`
}

func (r *RemoteCounter) countBatch(texts []string) ([]int, error) {
	body, err := json.Marshal(remoteCountRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.Client.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote token counter returned %d", resp.StatusCode)
	}
	var out remoteCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

func (r *RemoteCounter) CountTokens(text string) int {
	tokens, err := r.countBatch([]string{text})
	if err != nil || len(tokens) != 1 {
		return r.fallback.CountTokens(text)
	}
	return tokens[0]
}

func (r *RemoteCounter) CountMessageTokens(msg Message) int {
	tokens := messageOverhead + r.CountTokens(msg.Content)
	if msg.Name != "" {
		tokens += r.CountTokens(msg.Name)
	}
	return tokens
}

func (r *RemoteCounter) CountMessagesTokens(msgs []Message) int {
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Content
	}
	tokens, err := r.countBatch(texts)
	if err != nil || len(tokens) != len(msgs) {
		total := conversationOverhead
		for _, m := range msgs {
			total += r.CountMessageTokens(m)
		}
		return total
	}
	total := conversationOverhead + messageOverhead*len(msgs)
	for _, n := range tokens {
		total += n
	}
	return total
}
