package patch

import (
	"errors"
	"fmt"
)

var (
	// ErrForbiddenKey is returned when a path names a reserved key.
	ErrForbiddenKey = errors.New("patch: forbidden key")

	// ErrMalformedPath is returned for unmatched or nested brackets, for indexes
	// that are not plain decimals (signed, zero-padded, non-numeric) and for
	// empty segments.
	ErrMalformedPath = errors.New("patch: malformed path")

	// ErrIndexOutOfRange is returned for indexes above MaxIndex.
	ErrIndexOutOfRange = errors.New("patch: array index out of range")

	// ErrPathTooDeep is returned when a path has more than MaxDepth segments.
	ErrPathTooDeep = errors.New("patch: path too deep")

	// ErrTooManyUpdates is returned when a call carries more than MaxUpdates updates.
	ErrTooManyUpdates = errors.New("patch: too many updates")
)

// PathError describes why an update was rejected.
type PathError struct {
	// Path is the offending path as supplied by the caller. Empty for
	// ErrTooManyUpdates.
	Path string

	// Segment is the offending segment or key, when one applies.
	Segment string

	// Index is the rejected array index text, when one applies.
	Index string

	// Limit is the exceeded ceiling, when one applies.
	Limit int

	Err error
}

func (e *PathError) Error() string {
	switch {
	case errors.Is(e.Err, ErrForbiddenKey):
		return fmt.Sprintf("%v %q in path %q", e.Err, e.Segment, e.Path)
	case errors.Is(e.Err, ErrIndexOutOfRange):
		return fmt.Sprintf("%v: index %s in segment %q of path %q (max %d)", e.Err, e.Index, e.Segment, e.Path, e.Limit)
	case errors.Is(e.Err, ErrPathTooDeep):
		return fmt.Sprintf("%v: path %q exceeds %d segments", e.Err, e.Path, e.Limit)
	case errors.Is(e.Err, ErrTooManyUpdates):
		return fmt.Sprintf("%v: more than %d updates", e.Err, e.Limit)
	case e.Segment != "":
		return fmt.Sprintf("%v: segment %q of path %q", e.Err, e.Segment, e.Path)
	default:
		return fmt.Sprintf("%v: %q", e.Err, e.Path)
	}
}

func (e *PathError) Unwrap() error { return e.Err }
