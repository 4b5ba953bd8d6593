package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// CommentIndex is the set of a tenant's trips known to have an active
// comment. It is a plain persisted set: an empty result may be a false
// negative, and callers fall back to a scan (see Store.TripsWithComments).
type CommentIndex struct {
	kv kv.Store
}

// NewCommentIndex creates a CommentIndex over s.
func NewCommentIndex(s kv.Store) *CommentIndex {
	return &CommentIndex{kv: s}
}

// Add records ids.
func (c *CommentIndex) Add(ctx context.Context, p tenant.Prefix, ids ...string) error {
	current, err := c.Get(ctx, p)
	if err != nil {
		return err
	}
	if !slices.IsSorted(current) {
		slices.Sort(current)
	}
	changed := false
	for _, id := range ids {
		var added bool
		current, added = insertID(current, id)
		changed = changed || added
	}
	if !changed {
		return nil
	}
	return c.save(ctx, p, current)
}

// Remove drops ids.
func (c *CommentIndex) Remove(ctx context.Context, p tenant.Prefix, ids ...string) error {
	current, err := c.Get(ctx, p)
	if err != nil {
		return err
	}
	kept := withoutIDs(current, ids...)
	if len(kept) == len(current) {
		return nil
	}
	return c.save(ctx, p, kept)
}

// Get returns the indexed IDs.
func (c *CommentIndex) Get(ctx context.Context, p tenant.Prefix) ([]string, error) {
	ids, _, err := loadIDs(ctx, c.kv, p.CommentIndex())
	if err != nil {
		return nil, fmt.Errorf("load comment index: %w", err)
	}
	return ids, nil
}

func (c *CommentIndex) save(ctx context.Context, p tenant.Prefix, ids []string) error {
	if err := saveIDs(ctx, c.kv, p.CommentIndex(), ids, true, kv.PutOptions{}); err != nil {
		return fmt.Errorf("save comment index: %w", err)
	}
	return nil
}
