// Package pebblekv implements kv.Store on a local Pebble database. It is the
// single-node backend used for development and the operator CLI.
//
// Values are stored behind an 8-byte big-endian expiry header (unix seconds,
// zero for none). Expired entries read as missing and are removed lazily.
package pebblekv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/jacentio/itinera/kv"
)

const headerLen = 8

// Store is a kv.Store backed by Pebble.
type Store struct {
	db     *pebble.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ kv.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (or creates) a Pebble database at path.
func Open(path string, opts *pebble.Options, options ...Option) (*Store, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}

	s := &Store{db: db, logger: slog.Default(), now: time.Now}
	for _, o := range options {
		o(s)
	}
	s.logger.Info("pebble opened", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	raw, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()

	value, expired, err := s.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if expired {
		if err := s.db.Delete([]byte(key), pebble.NoSync); err != nil {
			s.logger.Warn("failed to drop expired key", "key", key, "error", err)
		}
		return nil, kv.ErrNotFound
	}
	return value, nil
}

// Put implements kv.Store.
func (s *Store) Put(_ context.Context, key string, value []byte, opts kv.PutOptions) error {
	var expires int64
	if opts.TTL > 0 {
		expires = s.now().Add(opts.TTL).Unix()
	}
	buf := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expires))
	copy(buf[headerLen:], value)

	if err := s.db.Set([]byte(key), buf, pebble.Sync); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// List implements kv.Store. The cursor is the last key of the previous page.
func (s *Store) List(_ context.Context, opts kv.ListOptions) (kv.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = kv.DefaultPageSize
	}

	iterOpts := &pebble.IterOptions{
		LowerBound: []byte(opts.Prefix),
		UpperBound: prefixEnd([]byte(opts.Prefix)),
	}
	if opts.Cursor != "" {
		// The smallest key strictly after the cursor.
		iterOpts.LowerBound = append([]byte(opts.Cursor), 0)
	}
	iter, err := s.db.NewIter(iterOpts)
	if err != nil {
		return kv.ListResult{}, fmt.Errorf("list %q: %w", opts.Prefix, err)
	}
	defer iter.Close()

	res := kv.ListResult{Complete: true}
	for iter.First(); iter.Valid(); iter.Next() {
		_, expired, err := s.decode(iter.Value())
		if err != nil {
			return kv.ListResult{}, fmt.Errorf("list %q: %w", opts.Prefix, err)
		}
		if expired {
			continue
		}
		if len(res.Keys) == limit {
			res.Complete = false
			res.Cursor = res.Keys[len(res.Keys)-1].Name
			break
		}
		res.Keys = append(res.Keys, kv.Key{Name: string(iter.Key())})
	}
	if err := iter.Error(); err != nil {
		return kv.ListResult{}, fmt.Errorf("list %q: %w", opts.Prefix, err)
	}
	return res, nil
}

func (s *Store) decode(raw []byte) (value []byte, expired bool, err error) {
	if len(raw) < headerLen {
		return nil, false, errors.New("value shorter than expiry header")
	}
	expires := int64(binary.BigEndian.Uint64(raw[:headerLen]))
	if expires != 0 && expires <= s.now().Unix() {
		return nil, true, nil
	}
	return bytes.Clone(raw[headerLen:]), false, nil
}

// prefixEnd returns the smallest key greater than every key with the prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
