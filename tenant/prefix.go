package tenant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator terminates every prefix. The escape scheme never emits it.
const Separator = "/"

const (
	tripIndexKey     = "_trip-index"
	pendingDeleteKey = "_trip-deletes"
	commentIndexKey  = "_comment-index"
	summarySuffix    = "/_summary"
	commentsSuffix   = "/_comments"
)

// ErrInvalidID is returned by ValidateID.
var ErrInvalidID = errors.New("itinera: invalid trip id")

// Encode derives the key prefix for a raw tenant identifier. Code points
// other than [a-z0-9] become "_<hex>_"; bytes that are not valid UTF-8
// become "_x<hex>_".
func Encode(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, "_x%02x_", raw[i])
			i++
			continue
		}
		i += size
		r = unicode.ToLower(r)
		if isAlnum(r) {
			b.WriteRune(r)
			continue
		}
		fmt.Fprintf(&b, "_%02x_", r)
	}
	b.WriteString(Separator)
	return b.String()
}

// LegacyEncode reproduces the original prefix scheme, which replaced every
// non-alphanumeric character with "_". Distinct tenants can collide under it,
// so it must never be used for writes.
func LegacyEncode(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString(Separator)
	return b.String()
}

// Decode reverses Encode. It reports false when prefix is not exactly the
// output of Encode for some input.
func Decode(prefix string) (string, bool) {
	body, ok := strings.CutSuffix(prefix, Separator)
	if !ok {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(body); {
		c := body[i]
		if c != '_' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(body[i+1:], '_')
		if end < 0 {
			return "", false
		}
		tok := body[i+1 : i+1+end]
		i += end + 2
		if hex, ok := strings.CutPrefix(tok, "x"); ok {
			c, err := strconv.ParseUint(hex, 16, 8)
			if err != nil {
				return "", false
			}
			b.WriteByte(byte(c))
			continue
		}
		code, err := strconv.ParseUint(tok, 16, 32)
		if err != nil {
			return "", false
		}
		b.WriteRune(rune(code))
	}
	raw := b.String()
	if Encode(raw) != prefix {
		return "", false
	}
	return raw, true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Prefix is an encoded tenant namespace. It is derived on every request and
// never stored.
type Prefix string

// For returns the prefix for a raw tenant identifier.
func For(raw string) Prefix {
	return Prefix(Encode(raw))
}

// String returns the prefix as a plain string.
func (p Prefix) String() string { return string(p) }

// Entity returns the key of a trip document.
func (p Prefix) Entity(id string) string { return string(p) + id }

// TripIndex returns the key of the tenant's trip index.
func (p Prefix) TripIndex() string { return string(p) + tripIndexKey }

// PendingDeletes returns the key of the tenant's pending-deletion ledger.
func (p Prefix) PendingDeletes() string { return string(p) + pendingDeleteKey }

// CommentIndex returns the key of the tenant's comment index.
func (p Prefix) CommentIndex() string { return string(p) + commentIndexKey }

// Summary returns the key of a trip's derived summary.
func (p Prefix) Summary(id string) string { return string(p) + id + summarySuffix }

// Comments returns the key of a trip's comment list.
func (p Prefix) Comments(id string) string { return string(p) + id + commentsSuffix }

// EntityID extracts the trip ID from a key listed under the prefix. It
// reports false for keys outside the prefix and for system keys.
func (p Prefix) EntityID(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, string(p))
	if !ok || id == "" || IsSystemKey(id) {
		return "", false
	}
	return id, true
}

// IsSystemKey reports whether a key (relative to a prefix) is internal
// bookkeeping rather than a trip.
func IsSystemKey(id string) bool {
	return strings.HasPrefix(id, "_") || strings.Contains(id, "/_")
}

// IsCommentsKey reports whether a key (relative to a prefix) holds a trip's
// comment list.
func IsCommentsKey(id string) bool {
	trip, ok := strings.CutSuffix(id, commentsSuffix)
	return ok && ValidateID(trip) == nil
}

// ValidateID rejects IDs that cannot name a trip.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case IsSystemKey(id):
		return fmt.Errorf("%w: %q collides with a system key", ErrInvalidID, id)
	case strings.Contains(id, "/"):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, "/")
	}
	return nil
}
