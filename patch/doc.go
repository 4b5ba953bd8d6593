// Package patch applies dotted-path updates to schema-less JSON documents.
//
// Documents use the shape produced by encoding/json: map[string]any for
// objects, []any for arrays, and scalars for everything else.
//
// # Path Grammar
//
//	path    = segment { "." segment }
//	segment = key [ "[" index "]" ]
//
// Leading and trailing dots are trimmed and an empty path is skipped.
//
//	Apply(doc, map[string]any{
//	    "meta.title":            "Lisbon",
//	    "days[2].items[0].cost": 40,
//	})
//
// # Validation
//
// Every path in a call is validated before any of them is applied, so a
// call either applies all of its updates or none. Validation rejects
// forbidden keys (__proto__, constructor, prototype), malformed brackets,
// indexes outside [0, MaxIndex], paths deeper than MaxDepth segments, and
// calls carrying more than MaxUpdates updates. Failures are returned as a
// [*PathError] naming the offending path, key, index, or limit.
//
// # Traversal
//
// Missing containers are created on the way down: an object for a bare
// segment and an array for an indexed one. Arrays grow with nil elements to
// reach the index. A scalar found where a container is needed is replaced.
package patch
