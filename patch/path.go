package patch

import (
	"strconv"
	"strings"
)

var forbiddenKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Segment is one step of a parsed path.
type Segment struct {
	Key     string
	Index   int
	Indexed bool
}

func (s Segment) String() string {
	if !s.Indexed {
		return s.Key
	}
	return s.Key + "[" + strconv.Itoa(s.Index) + "]"
}

// Path is a parsed, validated update path.
type Path []Segment

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Parse validates a path against the limits and splits it into segments.
// An empty path (after trimming dots) yields a nil Path and no error.
func Parse(path string, limits Limits) (Path, error) {
	trimmed := strings.Trim(path, ".")
	if trimmed == "" {
		return nil, nil
	}
	raw := strings.Split(trimmed, ".")

	for _, seg := range raw {
		if forbiddenKeys[seg] {
			return nil, &PathError{Path: path, Segment: seg, Err: ErrForbiddenKey}
		}
		if key, _, found := strings.Cut(seg, "["); found && forbiddenKeys[key] {
			return nil, &PathError{Path: path, Segment: key, Err: ErrForbiddenKey}
		}
	}

	parsed := make(Path, 0, len(raw))
	for _, seg := range raw {
		s, err := parseSegment(path, seg, limits.MaxIndex)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, s)
	}

	if len(parsed) > limits.MaxDepth {
		return nil, &PathError{Path: path, Limit: limits.MaxDepth, Err: ErrPathTooDeep}
	}
	return parsed, nil
}

func parseSegment(path, seg string, maxIndex int) (Segment, error) {
	malformed := &PathError{Path: path, Segment: seg, Err: ErrMalformedPath}
	if seg == "" {
		return Segment{}, malformed
	}

	open := strings.IndexByte(seg, '[')
	if open < 0 {
		if strings.ContainsRune(seg, ']') {
			return Segment{}, malformed
		}
		return Segment{Key: seg}, nil
	}

	key, rest := seg[:open], seg[open+1:]
	if key == "" || strings.ContainsRune(key, ']') || !strings.HasSuffix(rest, "]") {
		return Segment{}, malformed
	}
	text := strings.TrimSuffix(rest, "]")
	if !isIndex(text) {
		return Segment{}, malformed
	}

	// Only overflow can fail once text is all digits.
	n, err := strconv.Atoi(text)
	if err != nil || n > maxIndex {
		return Segment{}, &PathError{Path: path, Segment: seg, Index: text, Limit: maxIndex, Err: ErrIndexOutOfRange}
	}
	return Segment{Key: key, Index: n, Indexed: true}, nil
}

// isIndex reports whether text is a canonical non-negative decimal: digits
// only, with no leading zero unless it is "0".
func isIndex(text string) bool {
	if text == "" || (len(text) > 1 && text[0] == '0') {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
