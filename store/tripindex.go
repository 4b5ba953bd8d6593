package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// TripIndex caches the IDs of a tenant's trips so listing doesn't need a
// prefix scan. A missing index is rebuilt from a scan before it is used, so
// the index is never worse than the scan it replaces.
type TripIndex struct {
	kv       kv.Store
	pageSize int
	logger   *slog.Logger
	metrics  *Metrics
}

// NewTripIndex creates a TripIndex over s.
func NewTripIndex(s kv.Store, config Config, opts ...Option) *TripIndex {
	config.validate()
	o := buildOptions(opts)
	return &TripIndex{
		kv:       s,
		pageSize: config.ScanPageSize,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Get returns the indexed trip IDs in sorted order, rebuilding the index if
// it is missing.
func (t *TripIndex) Get(ctx context.Context, p tenant.Prefix) ([]string, error) {
	ids, ok, err := loadIDs(ctx, t.kv, p.TripIndex())
	if err != nil {
		return nil, fmt.Errorf("load trip index: %w", err)
	}
	if ok {
		return ids, nil
	}
	return t.rebuild(ctx, p, "missing")
}

// Add records id. The index is built first if it is missing so the add lands
// on a complete baseline.
func (t *TripIndex) Add(ctx context.Context, p tenant.Prefix, id string) error {
	ids, err := t.Get(ctx, p)
	if err != nil {
		return err
	}
	if !slices.IsSorted(ids) {
		slices.Sort(ids)
	}
	ids, added := insertID(ids, id)
	if !added {
		return nil
	}
	if err := saveIDs(ctx, t.kv, p.TripIndex(), ids, false, kv.PutOptions{}); err != nil {
		return fmt.Errorf("save trip index: %w", err)
	}
	return nil
}

// Remove drops id. A missing index is left missing.
func (t *TripIndex) Remove(ctx context.Context, p tenant.Prefix, id string) error {
	ids, ok, err := loadIDs(ctx, t.kv, p.TripIndex())
	if err != nil {
		return fmt.Errorf("load trip index: %w", err)
	}
	if !ok || !slices.Contains(ids, id) {
		return nil
	}
	if err := saveIDs(ctx, t.kv, p.TripIndex(), withoutIDs(ids, id), false, kv.PutOptions{}); err != nil {
		return fmt.Errorf("save trip index: %w", err)
	}
	return nil
}

// Rebuild replaces the index with the result of a full prefix scan.
func (t *TripIndex) Rebuild(ctx context.Context, p tenant.Prefix) ([]string, error) {
	return t.rebuild(ctx, p, "requested")
}

func (t *TripIndex) rebuild(ctx context.Context, p tenant.Prefix, reason string) ([]string, error) {
	ids, err := scanTrips(ctx, t.kv, p, t.pageSize)
	if err != nil {
		return nil, err
	}
	if err := saveIDs(ctx, t.kv, p.TripIndex(), ids, false, kv.PutOptions{}); err != nil {
		return nil, fmt.Errorf("save trip index: %w", err)
	}
	t.metrics.indexRebuilt(reason)
	t.logger.Debug("trip index rebuilt", "tenantPrefix", p.String(), "reason", reason, "trips", len(ids))
	return ids, nil
}

// scanTrips lists every trip ID under p, excluding system keys.
func scanTrips(ctx context.Context, s kv.Store, p tenant.Prefix, pageSize int) ([]string, error) {
	keys, err := kv.ListAll(ctx, s, p.String(), pageSize)
	if err != nil {
		return nil, fmt.Errorf("scan trips: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := p.EntityID(key); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
