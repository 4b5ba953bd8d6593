package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/tenant"
)

// legacyPrefix returns the legacy prefix of tenantID, or false when it is
// the same as the current one and there is nothing to migrate.
func legacyPrefix(tenantID string) (tenant.Prefix, bool, error) {
	legacy := tenant.LegacyEncode(tenantID)
	if legacy == tenant.Encode(tenantID) {
		return "", false, nil
	}
	if owner, ok := tenant.Decode(legacy); ok {
		return "", false, fmt.Errorf("%w: %q belongs to %q", ErrLegacyAmbiguous, legacy, owner)
	}
	return tenant.Prefix(legacy), true, nil
}

// LegacyKeys lists the keys a tenant still has under the legacy prefix.
func (s *Store) LegacyKeys(ctx context.Context, tenantID string) ([]string, error) {
	legacy, ok, err := legacyPrefix(tenantID)
	if err != nil || !ok {
		return nil, err
	}
	keys, err := kv.ListAll(ctx, s.kv, legacy.String(), s.config.ScanPageSize)
	if err != nil {
		return nil, fmt.Errorf("list legacy keys: %w", err)
	}
	return keys, nil
}

// MigrateLegacy copies trips and comments from the legacy prefix to the
// tenant's current one and returns the number of trips copied. Trips that
// already exist under the current prefix are kept as they are, and the
// tenant's indexes are rebuilt.
//
// Several tenants can share one legacy prefix, so nothing under it is
// deleted: the other tenants may still need to migrate the same keys.
func (s *Store) MigrateLegacy(ctx context.Context, tenantID string) (int, error) {
	legacy, ok, err := legacyPrefix(tenantID)
	if err != nil || !ok {
		return 0, err
	}
	keys, err := s.LegacyKeys(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	p := tenant.For(tenantID)
	copied := 0
	for _, key := range keys {
		rel := strings.TrimPrefix(key, legacy.String())
		_, isTrip := legacy.EntityID(key)
		if !isTrip && !tenant.IsCommentsKey(rel) {
			continue
		}
		wrote, err := s.copyIfAbsent(ctx, key, p.String()+rel)
		if err != nil {
			return copied, err
		}
		if wrote && isTrip {
			copied++
		}
	}

	if _, err := s.trips.Rebuild(ctx, p); err != nil {
		return copied, err
	}
	// Forces the next TripsWithComments to rebuild from a scan.
	if err := s.kv.Delete(ctx, p.CommentIndex()); err != nil {
		return copied, fmt.Errorf("reset comment index: %w", err)
	}
	s.logger.Info("legacy keys copied",
		"tenantPrefix", p.String(),
		"legacyPrefix", legacy.String(),
		"keys", len(keys),
		"trips", copied,
	)
	return copied, nil
}

func (s *Store) copyIfAbsent(ctx context.Context, from, to string) (bool, error) {
	_, err := s.kv.Get(ctx, to)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return false, fmt.Errorf("check %q: %w", to, err)
	}
	value, err := s.kv.Get(ctx, from)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %q: %w", from, err)
	}
	if err := s.kv.Put(ctx, to, value, kv.PutOptions{}); err != nil {
		return false, fmt.Errorf("write %q: %w", to, err)
	}
	return true, nil
}
