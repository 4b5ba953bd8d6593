package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// PendingDeletes is the per-tenant ledger of recently deleted trips. Readers
// treat every ID in it as absent, however stale the index or backend listing
// that still reports it. The ledger expires after the configured TTL, by
// which time the backend is assumed to have converged.
type PendingDeletes struct {
	kv      kv.Store
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

// NewPendingDeletes creates a ledger over s.
func NewPendingDeletes(s kv.Store, config Config, opts ...Option) *PendingDeletes {
	config.validate()
	o := buildOptions(opts)
	return &PendingDeletes{
		kv:      s,
		ttl:     config.PendingDeleteTTL,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Add records id as deleted and restarts the ledger's TTL. System keys are
// ignored.
func (l *PendingDeletes) Add(ctx context.Context, p tenant.Prefix, id string) error {
	if tenant.IsSystemKey(id) {
		return nil
	}
	ids, err := l.Get(ctx, p)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, id) {
		ids = append(ids, id)
	}
	return l.save(ctx, p, ids)
}

// Remove clears id, e.g. because the trip was re-created.
func (l *PendingDeletes) Remove(ctx context.Context, p tenant.Prefix, id string) error {
	ids, err := l.Get(ctx, p)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, id) {
		return nil
	}
	return l.save(ctx, p, withoutIDs(ids, id))
}

// Get returns the IDs currently pending deletion.
func (l *PendingDeletes) Get(ctx context.Context, p tenant.Prefix) ([]string, error) {
	ids, _, err := loadIDs(ctx, l.kv, p.PendingDeletes())
	if err != nil {
		return nil, fmt.Errorf("load pending deletes: %w", err)
	}
	return ids, nil
}

// FilterVisible returns ids without those pending deletion. As a side effect
// it checks each pending ID against the backend and drops the ones whose
// trip key is confirmed gone. Failures while reconciling are logged and do
// not affect the result.
func (l *PendingDeletes) FilterVisible(ctx context.Context, p tenant.Prefix, ids []string) ([]string, error) {
	pending, err := l.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return slices.Clone(ids), nil
	}

	visible := withoutIDs(ids, pending...)
	l.reconcile(ctx, p, pending)
	return visible, nil
}

func (l *PendingDeletes) reconcile(ctx context.Context, p tenant.Prefix, pending []string) {
	var gone []string
	for _, id := range pending {
		_, err := l.kv.Get(ctx, p.Entity(id))
		switch {
		case errors.Is(err, kv.ErrNotFound):
			gone = append(gone, id)
		case err != nil:
			l.logger.Warn("pending delete check failed", "tenantPrefix", p.String(), "tripID", id, "error", err)
		}
	}
	if len(gone) == 0 {
		return
	}

	// Re-read so entries added since the first read survive.
	current, err := l.Get(ctx, p)
	if err != nil {
		l.logger.Warn("pending delete reconcile failed", "tenantPrefix", p.String(), "error", err)
		return
	}
	if err := l.save(ctx, p, withoutIDs(current, gone...)); err != nil {
		l.logger.Warn("pending delete reconcile failed", "tenantPrefix", p.String(), "error", err)
		return
	}
	l.metrics.reconciled(len(gone))
	l.logger.Debug("pending deletes reconciled", "tenantPrefix", p.String(), "dropped", len(gone))
}

func (l *PendingDeletes) save(ctx context.Context, p tenant.Prefix, ids []string) error {
	if err := saveIDs(ctx, l.kv, p.PendingDeletes(), ids, true, kv.PutOptions{TTL: l.ttl}); err != nil {
		return fmt.Errorf("save pending deletes: %w", err)
	}
	return nil
}
