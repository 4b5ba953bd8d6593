// Package kv defines the eventually-consistent key-value store the data
// access layer is built on, plus helpers shared by every backend.
//
// A Store offers no transactions, no conditional writes, and only paginated
// enumeration. Reads may lag writes. Backends live in sub-packages
// (dynamokv, pebblekv); [Memory] is an in-process implementation.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// DefaultPageSize is used by List when ListOptions.Limit is zero.
const DefaultPageSize = 1000

// Store is the abstract key-value backend.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value at key. A positive TTL lets the backend expire the key.
	Put(ctx context.Context, key string, value []byte, opts PutOptions) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns one page of keys, in lexicographic order, that start with
	// the prefix.
	List(ctx context.Context, opts ListOptions) (ListResult, error)
}

// PutOptions configures a Put.
type PutOptions struct {
	// TTL is how long the key lives. Zero means forever.
	TTL time.Duration
}

// ListOptions configures a List page.
type ListOptions struct {
	Prefix string

	// Cursor continues a previous listing. Empty starts from the beginning.
	Cursor string

	// Limit caps the page size. Zero uses DefaultPageSize.
	Limit int
}

// Key is a listed key.
type Key struct {
	Name string
}

// ListResult is one page of a listing.
type ListResult struct {
	Keys []Key

	// Cursor continues the listing when Complete is false.
	Cursor string

	// Complete reports that no further pages exist.
	Complete bool
}

// ListAll pages through every key under prefix.
func ListAll(ctx context.Context, s Store, prefix string, pageSize int) ([]string, error) {
	var (
		names  []string
		cursor string
	)
	for {
		page, err := s.List(ctx, ListOptions{Prefix: prefix, Cursor: cursor, Limit: pageSize})
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}
		for _, k := range page.Keys {
			names = append(names, k.Name)
		}
		if page.Complete {
			return names, nil
		}
		if page.Cursor == "" || page.Cursor == cursor {
			return nil, fmt.Errorf("list %q: cursor did not advance past %q", prefix, cursor)
		}
		cursor = page.Cursor
	}
}

// GetJSON decodes the value at key into v. It reports false, with no error,
// when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it at key.
func PutJSON(ctx context.Context, s Store, key string, v any, opts PutOptions) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Put(ctx, key, raw, opts)
}
