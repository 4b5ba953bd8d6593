package patch

import "sort"

// Limits bounds the work a single Apply call may do.
type Limits struct {
	// MaxUpdates is the most updates accepted per call.
	// Default: 100
	MaxUpdates int `yaml:"max_updates"`

	// MaxDepth is the most segments accepted per path.
	// Default: 10
	MaxDepth int `yaml:"max_depth"`

	// MaxIndex is the largest array index accepted.
	// Default: 10000
	MaxIndex int `yaml:"max_index"`
}

// DefaultLimits returns the limits used by the package-level Apply.
func DefaultLimits() Limits {
	return Limits{
		MaxUpdates: 100,
		MaxDepth:   10,
		MaxIndex:   10000,
	}
}

// withDefaults fills unset limits from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxUpdates <= 0 {
		l.MaxUpdates = d.MaxUpdates
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxIndex <= 0 {
		l.MaxIndex = d.MaxIndex
	}
	return l
}

// Engine applies path updates under a fixed set of limits.
type Engine struct {
	limits Limits
}

// New creates an Engine. Zero-valued limits take their defaults.
func New(limits Limits) *Engine {
	return &Engine{limits: limits.withDefaults()}
}

// Limits returns the limits the engine enforces.
func (e *Engine) Limits() Limits { return e.limits }

var defaultEngine = New(DefaultLimits())

// Apply applies updates with the default limits.
func Apply(doc any, updates map[string]any) (any, error) {
	return defaultEngine.Apply(doc, updates)
}

type update struct {
	path  Path
	value any
}

// Apply validates every update and then applies them to doc in path order.
// If doc is not an object it is replaced by a new one. On error doc is left
// untouched.
func (e *Engine) Apply(doc any, updates map[string]any) (any, error) {
	if len(updates) > e.limits.MaxUpdates {
		return doc, &PathError{Limit: e.limits.MaxUpdates, Err: ErrTooManyUpdates}
	}

	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	ops := make([]update, 0, len(paths))
	for _, p := range paths {
		parsed, err := Parse(p, e.limits)
		if err != nil {
			return doc, err
		}
		if parsed == nil {
			continue
		}
		ops = append(ops, update{path: parsed, value: updates[p]})
	}
	if len(ops) == 0 {
		return doc, nil
	}

	root, ok := doc.(map[string]any)
	if !ok {
		root = make(map[string]any)
	}
	for _, op := range ops {
		set(root, op.path, op.value)
	}
	return root, nil
}

// set writes value at path, creating or replacing containers on the way.
// The path must already be validated.
func set(root map[string]any, path Path, value any) {
	cur := root
	for i, seg := range path {
		last := i == len(path)-1

		if !seg.Indexed {
			if last {
				cur[seg.Key] = value
				return
			}
			next, ok := cur[seg.Key].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[seg.Key] = next
			}
			cur = next
			continue
		}

		list, _ := cur[seg.Key].([]any)
		if len(list) <= seg.Index {
			list = append(list, make([]any, seg.Index+1-len(list))...)
		}
		cur[seg.Key] = list
		if last {
			list[seg.Index] = value
			return
		}
		next, ok := list[seg.Index].(map[string]any)
		if !ok {
			next = make(map[string]any)
			list[seg.Index] = next
		}
		cur = next
	}
}
