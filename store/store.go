package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/patch"
	"github.com/jacentio/itinera/tenant"
)

// Store provides trip CRUD with self-healing indexes over a kv.Store.
// It holds no per-tenant state; every call rebuilds what it needs from the
// backend.
type Store struct {
	kv        kv.Store
	config    Config
	engine    *patch.Engine
	trips     *TripIndex
	pending   *PendingDeletes
	comments  *CommentIndex
	summaries *SummaryCache
	logger    *slog.Logger
	metrics   *Metrics
	runner    Runner
	now       func() time.Time
}

// New creates a new Store instance.
func New(backend kv.Store, config Config, opts ...Option) *Store {
	config.validate()
	o := buildOptions(opts)
	return &Store{
		kv:        backend,
		config:    config,
		engine:    patch.New(config.Patch),
		trips:     NewTripIndex(backend, config, opts...),
		pending:   NewPendingDeletes(backend, config, opts...),
		comments:  NewCommentIndex(backend),
		summaries: NewSummaryCache(backend, config, opts...),
		logger:    o.logger,
		metrics:   o.metrics,
		runner:    o.runner,
		now:       time.Now,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config { return s.config }

// TripIndex returns the trip index component.
func (s *Store) TripIndex() *TripIndex { return s.trips }

// PendingDeletes returns the pending-deletion ledger.
func (s *Store) PendingDeletes() *PendingDeletes { return s.pending }

// CommentIndex returns the comment index component.
func (s *Store) CommentIndex() *CommentIndex { return s.comments }

// SummaryCache returns the summary cache component.
func (s *Store) SummaryCache() *SummaryCache { return s.summaries }

// Create stores doc under a new random ID and returns the ID.
func (s *Store) Create(ctx context.Context, tenantID string, doc Document) (string, error) {
	id := uuid.NewString()
	if err := s.Put(ctx, tenantID, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Put creates or replaces a trip.
func (s *Store) Put(ctx context.Context, tenantID, id string, doc Document) error {
	if err := tenant.ValidateID(id); err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return s.write(ctx, tenant.For(tenantID), id, raw)
}

// write runs the trip write path. The summary is invalidated before the trip
// changes so a failure part way never leaves a current-looking summary of
// the old trip.
func (s *Store) write(ctx context.Context, p tenant.Prefix, id string, raw []byte) error {
	if _, err := decodeShape(raw); err != nil {
		return err
	}
	if err := s.summaries.Invalidate(ctx, p, id); err != nil {
		return err
	}
	if err := s.kv.Put(ctx, p.Entity(id), raw, kv.PutOptions{}); err != nil {
		return fmt.Errorf("put trip %s: %w", id, err)
	}
	// A re-created trip must not stay masked by its old tombstone.
	if err := s.pending.Remove(ctx, p, id); err != nil {
		return err
	}

	s.maintain(ctx, "index-add", p, id, func(ctx context.Context) error {
		return s.trips.Add(ctx, p, id)
	})
	// The refresh reads the trip again when it runs, so whichever task runs
	// last summarises the latest write.
	s.maintain(ctx, "summary-refresh", p, id, func(ctx context.Context) error {
		latest, err := s.kv.Get(ctx, p.Entity(id))
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get trip %s: %w", id, err)
		}
		_, _, err = s.summaries.Refresh(ctx, p, id, latest)
		return err
	})
	return nil
}

// Get returns a trip. Trips pending deletion are reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, tenantID, id string) (Document, error) {
	if err := tenant.ValidateID(id); err != nil {
		return nil, err
	}
	p := tenant.For(tenantID)
	raw, err := s.load(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

// load reads a visible trip's raw document.
func (s *Store) load(ctx context.Context, p tenant.Prefix, id string) ([]byte, error) {
	pending, err := s.pending.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if slices.Contains(pending, id) {
		return nil, ErrNotFound
	}
	raw, err := s.kv.Get(ctx, p.Entity(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", id, err)
	}
	return raw, nil
}

// Patch applies path updates to a trip and stores the result. Validation
// failures are returned as *patch.PathError and nothing is written.
func (s *Store) Patch(ctx context.Context, tenantID, id string, updates map[string]any) (Document, error) {
	doc, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Apply(doc, updates)
	if err != nil {
		return nil, err
	}
	patched, ok := out.(Document)
	if !ok {
		return nil, fmt.Errorf("%w: patch produced %T", ErrInvalidDocument, out)
	}
	raw, err := json.Marshal(patched)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := s.write(ctx, tenant.For(tenantID), id, raw); err != nil {
		return nil, err
	}
	return patched, nil
}

// Delete removes a trip and masks it until the backend converges.
func (s *Store) Delete(ctx context.Context, tenantID, id string) error {
	if err := tenant.ValidateID(id); err != nil {
		return err
	}
	p := tenant.For(tenantID)
	if _, err := s.load(ctx, p, id); err != nil {
		return err
	}

	if err := s.kv.Delete(ctx, p.Entity(id)); err != nil {
		return fmt.Errorf("delete trip %s: %w", id, err)
	}
	if err := s.pending.Add(ctx, p, id); err != nil {
		return err
	}

	s.maintain(ctx, "index-remove", p, id, func(ctx context.Context) error {
		return s.trips.Remove(ctx, p, id)
	})
	s.maintain(ctx, "summary-delete", p, id, func(ctx context.Context) error {
		return s.summaries.Invalidate(ctx, p, id)
	})
	s.maintain(ctx, "comments-delete", p, id, func(ctx context.Context) error {
		if err := s.kv.Delete(ctx, p.Comments(id)); err != nil {
			return err
		}
		return s.comments.Remove(ctx, p, id)
	})
	return nil
}

// List returns the IDs of a tenant's visible trips.
func (s *Store) List(ctx context.Context, tenantID string) ([]string, error) {
	return s.visible(ctx, tenant.For(tenantID))
}

func (s *Store) visible(ctx context.Context, p tenant.Prefix) ([]string, error) {
	ids, err := s.trips.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.pending.FilterVisible(ctx, p, ids)
}

// Summaries returns the summaries of a tenant's visible trips.
func (s *Store) Summaries(ctx context.Context, tenantID string) ([]*Summary, error) {
	p := tenant.For(tenantID)
	ids, err := s.visible(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.summaries.GetMany(ctx, p, ids)
}

// Summary returns the summary of one trip.
func (s *Store) Summary(ctx context.Context, tenantID, id string) (*Summary, error) {
	if err := tenant.ValidateID(id); err != nil {
		return nil, err
	}
	p := tenant.For(tenantID)
	pending, err := s.pending.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if slices.Contains(pending, id) {
		return nil, ErrNotFound
	}
	return s.summaries.GetOrCompute(ctx, p, id)
}

// Reindex rebuilds a tenant's trip index from a full scan.
func (s *Store) Reindex(ctx context.Context, tenantID string) ([]string, error) {
	return s.trips.Rebuild(ctx, tenant.For(tenantID))
}

// Pending returns the trips of a tenant currently pending deletion.
func (s *Store) Pending(ctx context.Context, tenantID string) ([]string, error) {
	return s.pending.Get(ctx, tenant.For(tenantID))
}

// maintain runs fn on the runner. Its failure is logged and counted, never
// returned.
func (s *Store) maintain(ctx context.Context, task string, p tenant.Prefix, id string, fn func(ctx context.Context) error) {
	s.runner.Go(ctx, func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			s.metrics.maintenanceFailed(task)
			s.logger.Warn("maintenance failed",
				"task", task,
				"tenantPrefix", p.String(),
				"tripID", id,
				"error", err,
			)
		}
	})
}
