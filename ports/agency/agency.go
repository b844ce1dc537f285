package agency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidPath = errors.New("invalid path")
)

// Reserved child names that the store uses for its own bookkeeping. They are
// never entity names.
const (
	ReservedLock    = "Lock"
	ReservedVersion = "Version"
)

// Store is the hierarchical, consensus-backed configuration store. Paths are
// '/'-joined segments. Values are JSON-like trees (map[string]any, []any,
// string, float64, bool, nil).
type Store interface {
	// Get returns the value at path. For interior nodes it returns a
	// map[string]any of the children: the full subtree when recursive is set,
	// otherwise leaf children by value and interior children as empty maps.
	Get(ctx context.Context, path string, recursive bool) (value any, err error)
	// Set replaces the subtree at path with value. Maps become interior nodes.
	Set(ctx context.Context, path string, value any) (ok bool, err error)
	// Remove deletes the subtree at path. ok is false if nothing was there.
	Remove(ctx context.Context, path string) (ok bool, err error)
	// List returns the child names below path.
	List(ctx context.Context, path string, sorted bool) ([]string, error)
	// VersionOf returns the version counter of the subtree at path. It
	// strictly increases with every write inside the subtree and is 0 for a
	// subtree that was never written.
	VersionOf(ctx context.Context, path string) (version uint64, err error)
}

// StoreError carries the failing operation and path of a store call.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("agency %s %q: %s", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func WrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Path: path, Err: err}
}

// Join builds a path from segments, skipping empty ones.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Split returns the segments of path. The root path yields nil.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func IsReserved(name string) bool {
	return name == ReservedLock || name == ReservedVersion
}

// FilterReserved drops reserved names, keeping the order of names.
func FilterReserved(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !IsReserved(n) {
			out = append(out, n)
		}
	}
	return out
}

// Keys returns the sorted non-reserved keys of a subtree value.
func Keys(value any) []string {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !IsReserved(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Normalize converts v into the JSON-like representation the store hands out,
// returning a deep copy.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode converts a store value into T.
func Decode[T any](v any) (out T, err error) {
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
