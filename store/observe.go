package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// ObserveWritten repairs derived state after a trip write seen outside this
// Store, e.g. on a change stream. The trip is indexed and its summary is
// refreshed if its content changed.
func (s *Store) ObserveWritten(ctx context.Context, p tenant.Prefix, id string) error {
	if tenant.IsSystemKey(id) {
		return nil
	}
	raw, err := s.kv.Get(ctx, p.Entity(id))
	if errors.Is(err, kv.ErrNotFound) {
		// Deleted again since; the removal will be observed too.
		return nil
	}
	if err != nil {
		return fmt.Errorf("get trip %s: %w", id, err)
	}

	var errs []error
	if err := s.trips.Add(ctx, p, id); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := s.summaries.Refresh(ctx, p, id, raw); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ObserveRemoved repairs derived state after the backend has confirmed a
// trip's removal. The trip leaves every index and the ledger.
func (s *Store) ObserveRemoved(ctx context.Context, p tenant.Prefix, id string) error {
	if tenant.IsSystemKey(id) {
		return nil
	}
	var errs []error
	if err := s.trips.Remove(ctx, p, id); err != nil {
		errs = append(errs, err)
	}
	if err := s.pending.Remove(ctx, p, id); err != nil {
		errs = append(errs, err)
	}
	if err := s.summaries.Invalidate(ctx, p, id); err != nil {
		errs = append(errs, err)
	}
	if err := s.comments.Remove(ctx, p, id); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
