package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shieldkit/shieldkit/clock"
	"github.com/shieldkit/shieldkit/internal/metrics"
)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	hasTTL    bool
	elem      *list.Element
}

// Memory is an in-process Backend with an LRU eviction policy bounded by
// MaxEntries and lazy expiration checked on access.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      *list.List // front = most recently used
	maxEntries int
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *metrics.Collector
	name       string
}

// NewMemory creates a Memory backend. maxEntries <= 0 means unbounded.
func NewMemory(name string, maxEntries int, logger *zap.Logger, m *metrics.Collector) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		entries:    make(map[string]*memoryEntry),
		order:      list.New(),
		maxEntries: maxEntries,
		clock:      clock.System,
		logger:     logger,
		metrics:    m,
		name:       name,
	}
}

// WithClock overrides the injected clock, for deterministic TTL tests.
func (m *Memory) WithClock(c clock.Clock) *Memory {
	m.clock = c
	return m
}

func (m *Memory) expiredLocked(e *memoryEntry) bool {
	return e.hasTTL && !m.clock.Now().Before(e.expiresAt)
}

func (m *Memory) touchLocked(e *memoryEntry) {
	m.order.MoveToFront(e.elem)
}

func (m *Memory) evictLocked() {
	if m.maxEntries <= 0 {
		return
	}
	for len(m.entries) > m.maxEntries {
		back := m.order.Back()
		if back == nil {
			return
		}
		key := back.Value.(string)
		m.order.Remove(back)
		delete(m.entries, key)
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expiredLocked(e) {
		if ok {
			m.order.Remove(e.elem)
			delete(m.entries, key)
		}
		m.metrics.RecordCacheMiss(m.name)
		return nil, ErrMiss
	}
	m.touchLocked(e)
	m.metrics.RecordCacheHit(m.name)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	if e, ok := m.entries[key]; ok {
		e.value = stored
		if ttl > 0 {
			e.expiresAt = m.clock.Now().Add(ttl)
			e.hasTTL = true
		} else {
			e.hasTTL = false
		}
		m.touchLocked(e)
		return nil
	}

	e := &memoryEntry{key: key, value: stored}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
		e.hasTTL = true
	}
	e.elem = m.order.PushFront(key)
	m.entries[key] = e
	m.evictLocked()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		m.order.Remove(e.elem)
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.expiredLocked(e) {
		return false, nil
	}
	return true, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	m.order.Init()
	return nil
}

func (m *Memory) Update(_ context.Context, key string, ttl time.Duration, fn func(current []byte, exists bool) ([]byte, bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	exists := ok && !m.expiredLocked(e)
	var current []byte
	if exists {
		current = e.value
	}

	next, write, err := fn(current, exists)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	if exists {
		e.value = next
		if ttl > 0 {
			e.expiresAt = m.clock.Now().Add(ttl)
			e.hasTTL = true
		}
		m.touchLocked(e)
		return nil
	}

	newEntry := &memoryEntry{key: key, value: next}
	if ttl > 0 {
		newEntry.expiresAt = m.clock.Now().Add(ttl)
		newEntry.hasTTL = true
	}
	newEntry.elem = m.order.PushFront(key)
	m.entries[key] = newEntry
	m.evictLocked()
	return nil
}
