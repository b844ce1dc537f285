package route

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Ops is the set of operations a route exposes.
type Ops uint8

const (
	Get Ops = 1 << iota
	Set
	Remove
	List
	CheckVersion
)

// ReadWrite is the operation set of a fully writable, cached route.
const ReadWrite = Get | Set | Remove | List | CheckVersion

func (o Ops) Has(other Ops) bool { return o&other == other }

func (o Ops) String() string {
	names := []struct {
		op   Ops
		name string
	}{{Get, "get"}, {Set, "set"}, {Remove, "remove"}, {List, "list"}, {CheckVersion, "checkVersion"}}
	var parts []string
	for _, n := range names {
		if o.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Kind tags the concrete route variant.
type Kind uint8

const (
	KindList Kind = iota + 1
	KindRead
	KindVersioned
	KindReadWrite
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindRead:
		return "read"
	case KindVersioned:
		return "versioned"
	case KindReadWrite:
		return "readWrite"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// kindFor picks the variant for an operation set. Writable routes are always
// versioned, so Set/Remove require CheckVersion and Get.
func kindFor(ops Ops) (Kind, bool) {
	switch {
	case ops.Has(Set) || ops.Has(Remove):
		if !ops.Has(Get | CheckVersion) {
			return 0, false
		}
		return KindReadWrite, true
	case ops.Has(CheckVersion):
		if !ops.Has(Get) {
			return 0, false
		}
		return KindVersioned, true
	case ops.Has(Get):
		return KindRead, true
	case ops == List:
		return KindList, true
	default:
		return 0, false
	}
}

// Route is a node in the typed path tree. Its operation set is fixed at
// construction; only children can be added later.
type Route interface {
	Name() string
	Path() string
	Ops() Ops
	Kind() Kind
	Child(name string) (Route, bool)

	node() *base
}

// Getter reads the value below a route. found is false when the path does
// not exist in the store.
type Getter interface {
	Route
	Get(ctx context.Context, recursive bool) (value any, found bool, err error)
}

// Lister lists child names with reserved markers removed, sorted.
type Lister interface {
	Route
	List(ctx context.Context) ([]string, error)
}

// VersionChecker serves reads from a version-validated cache.
type VersionChecker interface {
	Getter
	Lister
	// Changed reports whether the store version moved past the cached one.
	Changed(ctx context.Context) (bool, error)
	// Read returns the full subtree, refetching only when the version moved.
	Read(ctx context.Context) (value any, found bool, err error)
}

// Writer mutates the store below a route.
type Writer interface {
	VersionChecker
	Set(ctx context.Context, value any) error
	SetKey(ctx context.Context, key string, value any) error
	RemoveKey(ctx context.Context, key string) (bool, error)
}

type template struct {
	name string
	ops  Ops
}

type base struct {
	r     *Router
	name  string
	label string
	path  string
	ops   Ops
	kind  Kind

	mu       sync.RWMutex
	children map[string]Route
	dynamic  *template
}

func (b *base) Name() string { return b.name }
func (b *base) Path() string { return b.path }
func (b *base) Ops() Ops     { return b.ops }
func (b *base) Kind() Kind   { return b.kind }
func (b *base) node() *base  { return b }

func (b *base) Child(name string) (Route, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.children[name]
	return c, ok
}

func (b *base) String() string {
	return fmt.Sprintf("%s %s%s", b.kind, b.path, b.ops)
}

// ListRoute only enumerates children.
type ListRoute struct{ base }

func (l *ListRoute) List(ctx context.Context) ([]string, error) {
	return l.r.list(ctx, &l.base)
}

// ReadRoute reads and lists straight from the store.
type ReadRoute struct{ base }

func (rr *ReadRoute) Get(ctx context.Context, recursive bool) (any, bool, error) {
	return rr.r.get(ctx, &rr.base, recursive)
}

func (rr *ReadRoute) List(ctx context.Context) ([]string, error) {
	return rr.r.list(ctx, &rr.base)
}

// VersionedRoute keeps its subtree in the router cache tagged with the store
// version it was read at.
type VersionedRoute struct{ base }

func (v *VersionedRoute) Get(ctx context.Context, recursive bool) (any, bool, error) {
	return v.r.get(ctx, &v.base, recursive)
}

func (v *VersionedRoute) List(ctx context.Context) ([]string, error) {
	value, found, err := v.Read(ctx)
	if err != nil || !found {
		return nil, err
	}
	return keysOf(value), nil
}

func (v *VersionedRoute) Read(ctx context.Context) (any, bool, error) {
	return v.r.read(ctx, &v.base)
}

func (v *VersionedRoute) Changed(ctx context.Context) (bool, error) {
	return v.r.changed(ctx, &v.base)
}

// ReadWriteRoute is a VersionedRoute that may also write. A successful write
// drops the route's own snapshot; snapshots of other routes are invalidated
// by the version bump the write causes.
type ReadWriteRoute struct{ VersionedRoute }

func (w *ReadWriteRoute) Set(ctx context.Context, value any) error {
	return w.written(w.r.set(ctx, w.path, value))
}

func (w *ReadWriteRoute) SetKey(ctx context.Context, key string, value any) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return w.written(w.r.set(ctx, joinPath(w.path, key), value))
}

func (w *ReadWriteRoute) RemoveKey(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	ok, err := w.r.remove(ctx, joinPath(w.path, key))
	return ok, w.written(err)
}

func (w *ReadWriteRoute) written(err error) error {
	if err == nil {
		w.r.cache.Delete(w.path)
	}
	return err
}

var (
	_ Lister = (*ListRoute)(nil)
	_ Getter = (*ReadRoute)(nil)
	_ Lister = (*ReadRoute)(nil)

	_ VersionChecker = (*VersionedRoute)(nil)
	_ Writer         = (*ReadWriteRoute)(nil)
)
