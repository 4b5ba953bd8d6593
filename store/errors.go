package store

import (
	"errors"

	"github.com/jacentio/itinera/tenant"
)

var (
	// ErrNotFound is returned when a trip doesn't exist or is pending deletion.
	ErrNotFound = errors.New("itinera: trip not found")

	// ErrInvalidID is returned for trip IDs that collide with system keys.
	ErrInvalidID = tenant.ErrInvalidID

	// ErrInvalidDocument is returned when a stored or supplied trip is not a JSON object
	// of the expected shape.
	ErrInvalidDocument = errors.New("itinera: invalid trip document")

	// ErrCommentNotFound is returned when dismissing a comment that doesn't exist.
	ErrCommentNotFound = errors.New("itinera: comment not found")

	// ErrLegacyAmbiguous is returned when a tenant's legacy prefix is also the
	// current prefix of another tenant, so its keys can't be attributed.
	ErrLegacyAmbiguous = errors.New("itinera: legacy prefix is shared with another tenant")
)
