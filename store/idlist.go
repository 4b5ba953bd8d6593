package store

import (
	"context"
	"slices"

	"github.com/jacentio/itinera/kv"
)

// loadIDs reads a JSON array of IDs. It reports false when the key is absent.
func loadIDs(ctx context.Context, s kv.Store, key string) ([]string, bool, error) {
	var ids []string
	ok, err := kv.GetJSON(ctx, s, key, &ids)
	if err != nil || !ok {
		return nil, false, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, true, nil
}

// saveIDs writes ids as a JSON array. An empty list is deleted instead when
// deleteEmpty is set.
func saveIDs(ctx context.Context, s kv.Store, key string, ids []string, deleteEmpty bool, opts kv.PutOptions) error {
	if len(ids) == 0 {
		if deleteEmpty {
			return s.Delete(ctx, key)
		}
		ids = []string{}
	}
	return kv.PutJSON(ctx, s, key, ids, opts)
}

// insertID adds id to a sorted list. It reports false if id was present.
func insertID(ids []string, id string) ([]string, bool) {
	i, found := slices.BinarySearch(ids, id)
	if found {
		return ids, false
	}
	return slices.Insert(ids, i, id), true
}

// withoutIDs returns ids minus every entry in drop, preserving order.
func withoutIDs(ids []string, drop ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(drop, id) {
			out = append(out, id)
		}
	}
	return out
}
