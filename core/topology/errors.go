package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every unknown-entity error; test with errors.Is.
	ErrNotFound = errors.New("not found")

	ErrDatabaseNotFound   = fmt.Errorf("database %w", ErrNotFound)
	ErrCollectionNotFound = fmt.Errorf("collection %w", ErrNotFound)
	ErrShardNotFound      = fmt.Errorf("shard %w", ErrNotFound)

	ErrNoCandidate    = errors.New("no candidate server")
	ErrRouterRequired = errors.New("router is required")
)

// InvalidScopePairError is returned when a diff is asked for a pair that is
// not ordered superior before inferior (Target, Plan, Current).
type InvalidScopePairError struct {
	Superior Scope
	Inferior Scope
}

func (e *InvalidScopePairError) Error() string {
	return fmt.Sprintf("invalid scope pair: %s is not superior to %s", e.Superior, e.Inferior)
}
