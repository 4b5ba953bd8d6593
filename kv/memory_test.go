package kv

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemory_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := m.Put(ctx, "a/1", []byte("one"), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := m.Get(ctx, "a/1")
	if err != nil || string(v) != "one" {
		t.Fatalf("expected 'one', got %q (%v)", v, err)
	}

	if err := m.Delete(ctx, "a/1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "a/1"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if _, err := m.Get(ctx, "a/1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	stats := m.Stats()
	if stats.Puts != 1 || stats.Deletes != 2 || stats.Gets != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemory(WithClock(clock.now))

	if err := m.Put(ctx, "p/_trip-deletes", []byte(`["t1"]`), PutOptions{TTL: 600 * time.Second}); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.advance(599 * time.Second)
	if _, err := m.Get(ctx, "p/_trip-deletes"); err != nil {
		t.Fatalf("expected live key before TTL, got %v", err)
	}

	clock.advance(time.Second)
	if _, err := m.Get(ctx, "p/_trip-deletes"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry at TTL, got %v", err)
	}
	if keys := m.Keys(); len(keys) != 0 {
		t.Errorf("expected no keys after expiry, got %v", keys)
	}
}

func TestMemory_ListPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		_ = m.Put(ctx, fmt.Sprintf("kim/t%d", i), []byte("{}"), PutOptions{})
	}
	_ = m.Put(ctx, "kimberly/t9", []byte("{}"), PutOptions{})
	_ = m.Put(ctx, "bob/t1", []byte("{}"), PutOptions{})

	page, err := m.List(ctx, ListOptions{Prefix: "kim/", Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Complete || page.Cursor != "kim/t1" || len(page.Keys) != 2 {
		t.Fatalf("unexpected first page %+v", page)
	}

	all, err := ListAll(ctx, m, "kim/", 2)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	expected := []string{"kim/t0", "kim/t1", "kim/t2", "kim/t3", "kim/t4"}
	if !reflect.DeepEqual(all, expected) {
		t.Errorf("expected %v, got %v", expected, all)
	}
}

type stuckStore struct{ *Memory }

func (s stuckStore) List(context.Context, ListOptions) (ListResult, error) {
	return ListResult{Keys: []Key{{Name: "x"}}, Cursor: "x"}, nil
}

func TestListAll_CursorMustAdvance(t *testing.T) {
	_, err := ListAll(context.Background(), stuckStore{NewMemory()}, "", 10)
	if err == nil {
		t.Fatal("expected error for a cursor that does not advance")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var ids []string
	found, err := GetJSON(ctx, m, "kim/_trip-index", &ids)
	if err != nil || found {
		t.Fatalf("expected (false, nil) for missing key, got (%v, %v)", found, err)
	}

	if err := PutJSON(ctx, m, "kim/_trip-index", []string{"t1", "t2"}, PutOptions{}); err != nil {
		t.Fatalf("put json: %v", err)
	}
	found, err = GetJSON(ctx, m, "kim/_trip-index", &ids)
	if err != nil || !found {
		t.Fatalf("expected (true, nil), got (%v, %v)", found, err)
	}
	if !reflect.DeepEqual(ids, []string{"t1", "t2"}) {
		t.Errorf("unexpected ids %v", ids)
	}

	_ = m.Put(ctx, "kim/bad", []byte("{"), PutOptions{})
	if _, err := GetJSON(ctx, m, "kim/bad", &ids); err == nil {
		t.Error("expected decode error")
	}
}
