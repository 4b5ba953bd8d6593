package store_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/itinera/kv"
	"github.com/jacentio/itinera/store"
	"github.com/jacentio/itinera/tenant"
)

func TestTripIndex_GetBuildsFromScan(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)

	putRaw(t, mem, p.Entity("trip-2"), `{}`)
	putRaw(t, mem, p.Entity("trip-1"), `{}`)
	putRaw(t, mem, p.Summary("trip-1"), `{}`)
	putRaw(t, mem, p.Comments("trip-1"), `[]`)
	putRaw(t, mem, p.PendingDeletes(), `[]`)
	putRaw(t, mem, tenant.For("kim-d63b7658").Entity("other"), `{}`)

	idx := store.NewTripIndex(mem, store.DefaultConfig())
	ids, err := idx.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"trip-1", "trip-2"}, ids)

	// The scan result is persisted as the cache.
	raw, err := mem.Get(ctx, p.TripIndex())
	require.NoError(t, err)
	assert.JSONEq(t, `["trip-1","trip-2"]`, string(raw))
}

func TestTripIndex_SelfHealsAfterOutOfBandDelete(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)
	for _, id := range []string{"a", "b", "c"} {
		putRaw(t, mem, p.Entity(id), `{}`)
	}

	reg := prometheus.NewRegistry()
	metrics := store.NewMetrics(reg)
	idx := store.NewTripIndex(mem, store.DefaultConfig(), store.WithMetrics(metrics))

	_, err := idx.Get(ctx, p)
	require.NoError(t, err)
	require.NoError(t, mem.Delete(ctx, p.TripIndex()))

	scanned, err := kv.ListAll(ctx, mem, p.String(), 0)
	require.NoError(t, err)

	ids, err := idx.Get(ctx, p)
	require.NoError(t, err)
	assert.Len(t, scanned, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	_, err = mem.Get(ctx, p.TripIndex())
	assert.NoError(t, err, "index should be persisted again")
	assert.Equal(t, 2.0, counterTotal(t, reg, "itinera_trip_index_rebuilds_total"))
}

func TestTripIndex_GetUsesCacheWithoutScanning(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)
	putRaw(t, mem, p.TripIndex(), `["x"]`)

	idx := store.NewTripIndex(mem, store.DefaultConfig())
	ids, err := idx.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)
	assert.Zero(t, mem.Stats().Lists)
}

func TestTripIndex_AddBuildsBaselineFirst(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)
	putRaw(t, mem, p.Entity("b"), `{}`)
	putRaw(t, mem, p.Entity("d"), `{}`)

	idx := store.NewTripIndex(mem, store.DefaultConfig())
	require.NoError(t, idx.Add(ctx, p, "c"))

	ids, err := idx.Get(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, ids)

	// Adding an indexed ID writes nothing.
	puts := mem.Stats().Puts
	require.NoError(t, idx.Add(ctx, p, "b"))
	assert.Equal(t, puts, mem.Stats().Puts)
}

func TestTripIndex_IncrementalMatchesRebuild(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)
	idx := store.NewTripIndex(mem, store.DefaultConfig())

	for _, id := range []string{"m", "a", "z", "k"} {
		putRaw(t, mem, p.Entity(id), `{}`)
		require.NoError(t, idx.Add(ctx, p, id))
	}
	require.NoError(t, mem.Delete(ctx, p.Entity("z")))
	require.NoError(t, idx.Remove(ctx, p, "z"))

	incremental, err := idx.Get(ctx, p)
	require.NoError(t, err)
	rebuilt, err := idx.Rebuild(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, rebuilt, incremental)
}

func TestTripIndex_RemoveWithoutIndexIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)

	idx := store.NewTripIndex(mem, store.DefaultConfig())
	require.NoError(t, idx.Remove(ctx, p, "trip-1"))

	assert.Zero(t, mem.Stats().Lists)
	assert.Zero(t, mem.Stats().Puts)
	_, err := mem.Get(ctx, p.TripIndex())
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestTripIndex_EmptyTenantIsCached(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)
	idx := store.NewTripIndex(mem, store.DefaultConfig())

	ids, err := idx.Get(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = idx.Get(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 1, mem.Stats().Lists)
}

func TestTripIndex_PaginatedScan(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	p := tenant.For(kimTenant)
	var expected []string
	for _, id := range []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6"} {
		putRaw(t, mem, p.Entity(id), `{}`)
		expected = append(expected, id)
	}

	cfg := store.DefaultConfig()
	cfg.ScanPageSize = 3
	ids, err := store.NewTripIndex(mem, cfg).Rebuild(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, expected, ids)
	assert.Equal(t, 3, mem.Stats().Lists)
}

// counterTotal sums every series of a registered counter.
func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
