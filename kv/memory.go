package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store. It honours TTLs against an injectable
// clock and counts operations so callers can assert on write traffic.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
	stats   Stats
}

type memEntry struct {
	value   []byte
	expires time.Time
}

// Stats counts operations served by a Memory store.
type Stats struct {
	Gets    int
	Puts    int
	Deletes int
	Lists   int
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock sets the clock used for TTL expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Gets++

	e, ok := m.live(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, value []byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Puts++

	e := memEntry{value: append([]byte(nil), value...)}
	if opts.TTL > 0 {
		e.expires = m.now().Add(opts.TTL)
	}
	m.entries[key] = e
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Deletes++

	delete(m.entries, key)
	return nil
}

// List implements Store. The cursor is the last key of the previous page.
func (m *Memory) List(_ context.Context, opts ListOptions) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Lists++

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var names []string
	for k := range m.entries {
		if !strings.HasPrefix(k, opts.Prefix) || k <= opts.Cursor {
			continue
		}
		if _, ok := m.live(k); ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	res := ListResult{Complete: true}
	if len(names) > limit {
		names = names[:limit]
		res.Complete = false
		res.Cursor = names[len(names)-1]
	}
	res.Keys = make([]Key, len(names))
	for i, n := range names {
		res.Keys[i] = Key{Name: n}
	}
	return res, nil
}

// Stats returns the operation counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Keys returns every live key, sorted.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for k := range m.entries {
		if _, ok := m.live(k); ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// live returns the entry at key unless it has expired. Expired entries are
// dropped. Callers hold m.mu.
func (m *Memory) live(key string) (memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return memEntry{}, false
	}
	return e, true
}
