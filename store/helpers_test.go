package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/store"
)

const kimTenant = "kim.d63b7658"

// laggyStore keeps deleted trip keys readable until converge is called, like
// a backend whose deletes have not propagated yet. System keys are not
// affected.
type laggyStore struct {
	*kv.Memory

	mu     sync.Mutex
	ghosts map[string][]byte
}

func newLaggyStore() *laggyStore {
	return &laggyStore{Memory: kv.NewMemory(), ghosts: make(map[string][]byte)}
}

func (l *laggyStore) Get(ctx context.Context, key string) ([]byte, error) {
	l.mu.Lock()
	v, ok := l.ghosts[key]
	l.mu.Unlock()
	if ok {
		return v, nil
	}
	return l.Memory.Get(ctx, key)
}

func (l *laggyStore) Put(ctx context.Context, key string, value []byte, opts kv.PutOptions) error {
	l.mu.Lock()
	delete(l.ghosts, key)
	l.mu.Unlock()
	return l.Memory.Put(ctx, key, value, opts)
}

func (l *laggyStore) Delete(ctx context.Context, key string) error {
	if !strings.Contains(key, "/_") {
		if v, err := l.Memory.Get(ctx, key); err == nil {
			l.mu.Lock()
			l.ghosts[key] = v
			l.mu.Unlock()
		}
	}
	return l.Memory.Delete(ctx, key)
}

func (l *laggyStore) converge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.ghosts)
}

var errInjected = errors.New("injected failure")

// failingStore fails writes to keys with the given suffix.
type failingStore struct {
	*kv.Memory
	suffix string
}

func (f *failingStore) Put(ctx context.Context, key string, value []byte, opts kv.PutOptions) error {
	if strings.HasSuffix(key, f.suffix) {
		return errInjected
	}
	return f.Memory.Put(ctx, key, value, opts)
}

// deferredRunner queues maintenance until the test runs it.
type deferredRunner struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context)
}

func (r *deferredRunner) Go(_ context.Context, fn func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, fn)
}

// runReversed runs the queued tasks newest first and empties the queue.
func (r *deferredRunner) runReversed(ctx context.Context) {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for i := len(tasks) - 1; i >= 0; i-- {
		tasks[i](ctx)
	}
}

// fixedClock is a settable clock for TTL tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func lisbonTrip() store.Document {
	return store.Document{
		"meta": map[string]any{
			"title":       "Lisbon",
			"destination": "Lisbon, PT",
			"startDate":   "2026-05-01",
			"endDate":     "2026-05-04",
			"travelers":   2,
		},
		"days": []any{
			map[string]any{"date": "2026-05-01", "items": []any{
				map[string]any{"title": "Flight", "category": "transport", "cost": 320.5, "status": "booked"},
				map[string]any{"title": "Pastéis", "category": "food", "cost": 12},
			}},
			map[string]any{"date": "2026-05-02", "items": []any{
				map[string]any{"title": "Tram 28", "category": "activity", "cost": 3, "status": "planned"},
			}},
		},
		"lodging": []any{
			map[string]any{"name": "Alfama flat", "checkIn": "2026-05-01", "checkOut": "2026-05-04", "cost": 450, "status": "booked"},
		},
		"notes": "bring sunscreen",
	}
}

// putRaw writes a trip directly to the backend, bypassing the Store.
func putRaw(t *testing.T, s kv.Store, key, value string) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, []byte(value), kv.PutOptions{}))
}
