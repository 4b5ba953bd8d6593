// Package partition maps flat store keys onto DynamoDB partition and sort keys.
package partition

import "strings"

// sortMarker prefixes every sort key so that the sort key is never empty,
// which DynamoDB rejects for key attributes.
const sortMarker = "#"

// Split computes the partition and sort key for a store key.
// The partition is everything up to and including the first "/" (the tenant
// prefix), so one tenant's keys share a partition and can be listed with a
// single Query. Keys without a "/" form their own partition.
func Split(key string) (pk, sk string) {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i+1], sortMarker + key[i+1:]
	}
	return key, sortMarker
}

// Join reverses Split.
func Join(pk, sk string) string {
	return pk + strings.TrimPrefix(sk, sortMarker)
}

// Queryable reports whether every key under prefix lives in one partition,
// which is the case once the prefix contains a "/".
func Queryable(prefix string) bool {
	return strings.IndexByte(prefix, '/') >= 0
}
