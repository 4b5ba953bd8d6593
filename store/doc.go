// Package store provides the trip data access layer on top of an
// eventually-consistent [kv.Store].
//
// The backend has no transactions, no conditional writes and only paginated
// listing, so every derived structure here is a self-healing cache: it can be
// rebuilt from the authoritative keys at any time, and readers rebuild it
// when it is missing or stale.
//
// # Keys
//
// For a tenant prefix p (see package tenant):
//
//	p{id}             trip document
//	p_trip-index      JSON array of trip IDs            (TripIndex)
//	p_trip-deletes    JSON array of deleted trip IDs    (PendingDeletes, TTL)
//	p_comment-index   JSON array of IDs with comments   (CommentIndex)
//	p{id}/_summary    derived summary                   (SummaryCache)
//	p{id}/_comments   comments on a trip
//
// # Write Ordering
//
// Put invalidates the summary, writes the trip, clears any tombstone, then
// updates the index and refreshes the summary. Delete removes the trip,
// records a tombstone, then updates the index. The authoritative write always
// comes first and its failure is returned; maintenance that follows runs on a
// [Runner] and its failures are logged, never returned.
//
// # Visibility
//
// The visible trips of a tenant are the trip index minus the pending-deletion
// ledger. A trip deleted moments ago may still be listed by the backend; the
// ledger masks it until the backend converges or the ledger expires.
//
// # Errors
//
//   - [ErrNotFound] - trip doesn't exist or is pending deletion
//   - [ErrInvalidID] - trip ID collides with a system key
//   - [ErrInvalidDocument] - trip is not a JSON object of the expected shape
//   - [ErrCommentNotFound] - comment doesn't exist
//   - [ErrLegacyAmbiguous] - legacy prefix is another tenant's current prefix
//
// Patch validation failures are returned as *patch.PathError.
package store
