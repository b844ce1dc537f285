package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codewandler/clstr-agency/core/cache"
	"github.com/codewandler/clstr-agency/core/sf"
	"github.com/codewandler/clstr-agency/ports/agency"
)

var (
	ErrUnsupportedOps = errors.New("unsupported route operations")
	ErrInvalidKey     = errors.New("invalid key")
	ErrStoreRequired  = errors.New("store is required")
)

type Options struct {
	Store agency.Store
	// Prefix roots every route below this path.
	Prefix string
	// Cache holds versioned snapshots. Defaults to an LRU of 1024 entries.
	Cache   cache.Cache
	Log     *slog.Logger
	Metrics Metrics
}

// snapshot is one VersionedCache entry: a subtree and the version it was
// read at.
type snapshot struct {
	version uint64
	value   any
	found   bool
}

// Router builds the route tree and performs every store round trip on behalf
// of its routes.
type Router struct {
	store   agency.Store
	cache   cache.TypedCache[snapshot]
	flight  *sf.Singleflight[snapshot]
	log     *slog.Logger
	metrics Metrics
	root    *ReadRoute
}

func New(opts Options) (*Router, error) {
	if opts.Store == nil {
		return nil, ErrStoreRequired
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewLRU(cache.LRUOpts{Size: 1024})
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}

	r := &Router{
		store:   opts.Store,
		cache:   cache.NewTyped[snapshot](c),
		flight:  sf.New[snapshot](),
		log:     log.With(slog.String("component", "router")),
		metrics: m,
	}
	r.root = r.newRoute("", "root", agency.Join(opts.Prefix), Get|List).(*ReadRoute)
	return r, nil
}

func (r *Router) Root() Route { return r.root }

func (r *Router) Store() agency.Store { return r.store }

func (r *Router) newRoute(name, label, path string, ops Ops) Route {
	kind, ok := kindFor(ops)
	if !ok {
		panic(fmt.Errorf("%w: %s at %q", ErrUnsupportedOps, ops, path))
	}
	b := base{r: r, name: name, label: label, path: path, ops: ops, kind: kind, children: map[string]Route{}}
	switch kind {
	case KindList:
		return &ListRoute{base: b}
	case KindRead:
		return &ReadRoute{base: b}
	case KindVersioned:
		return &VersionedRoute{base: b}
	default:
		return &ReadWriteRoute{VersionedRoute{base: b}}
	}
}

// AddLevel appends segment to the parent's path, builds the route variant
// matching ops and registers it as the parent's child called name. It panics
// on an operation set no variant supports.
func (r *Router) AddLevel(parent Route, name, segment string, ops Ops) Route {
	p := parent.node()
	if p.r != r {
		panic(fmt.Errorf("route %q belongs to another router", p.path))
	}
	label := name
	if p.label != "root" {
		label = p.label + "/" + name
	}
	child := r.newRoute(name, label, agency.Join(p.path, segment), ops)

	p.mu.Lock()
	p.children[name] = child
	p.mu.Unlock()
	return child
}

// AddDynamic declares that parent has data-driven children (ids, names read
// from the store) exposing ops. They are bound by Resolve.
func (r *Router) AddDynamic(parent Route, name string, ops Ops) {
	if _, ok := kindFor(ops); !ok {
		panic(fmt.Errorf("%w: %s for dynamic %q", ErrUnsupportedOps, ops, name))
	}
	p := parent.node()
	p.mu.Lock()
	p.dynamic = &template{name: name, ops: ops}
	p.mu.Unlock()
}

// Resolve binds the data-driven child key of parent. The returned route is
// fresh on every call and not registered with parent, so bindings never leak
// between callers. An unknown key yields ok=false.
func (r *Router) Resolve(ctx context.Context, parent Route, key string) (Route, bool, error) {
	p := parent.node()
	p.mu.RLock()
	tmpl := p.dynamic
	p.mu.RUnlock()
	if tmpl == nil || checkKey(key) != nil {
		return nil, false, nil
	}

	var (
		exists bool
		err    error
	)
	if vc, ok := parent.(VersionChecker); ok {
		var value any
		value, exists, err = vc.Read(ctx)
		if exists {
			m, _ := value.(map[string]any)
			_, exists = m[key]
		}
	} else {
		_, exists, err = r.get(ctx, &base{path: joinPath(p.path, key)}, false)
	}
	if err != nil || !exists {
		return nil, false, err
	}

	r.log.Debug("resolved route", slog.String("parent", p.path), slog.String("key", key))
	return r.newRoute(key, p.label+"/"+tmpl.name, joinPath(p.path, key), tmpl.ops), true, nil
}

// === store round trips ===

func (r *Router) observe(op string) func(error) {
	t := r.metrics.StoreOpDuration(op)
	return func(err error) {
		t.ObserveDuration()
		r.metrics.StoreOpCompleted(op, err == nil)
	}
}

func (r *Router) get(ctx context.Context, b *base, recursive bool) (value any, found bool, err error) {
	done := r.observe("get")
	value, err = r.store.Get(ctx, b.path, recursive)
	if errors.Is(err, agency.ErrNotFound) {
		done(nil)
		return nil, false, nil
	}
	done(err)
	if err != nil {
		return nil, false, agency.WrapError("get", b.path, err)
	}
	return value, true, nil
}

func (r *Router) list(ctx context.Context, b *base) ([]string, error) {
	done := r.observe("list")
	names, err := r.store.List(ctx, b.path, true)
	if errors.Is(err, agency.ErrNotFound) {
		done(nil)
		return nil, nil
	}
	done(err)
	if err != nil {
		return nil, agency.WrapError("list", b.path, err)
	}
	return agency.FilterReserved(names), nil
}

func (r *Router) set(ctx context.Context, path string, value any) error {
	done := r.observe("set")
	_, err := r.store.Set(ctx, path, value)
	done(err)
	if err != nil {
		return agency.WrapError("set", path, err)
	}
	r.log.Debug("store set", slog.String("path", path))
	return nil
}

func (r *Router) remove(ctx context.Context, path string) (bool, error) {
	done := r.observe("remove")
	ok, err := r.store.Remove(ctx, path)
	done(err)
	if err != nil {
		return false, agency.WrapError("remove", path, err)
	}
	r.log.Debug("store remove", slog.String("path", path), slog.Bool("removed", ok))
	return ok, nil
}

func (r *Router) version(ctx context.Context, path string) (uint64, error) {
	done := r.observe("version")
	v, err := r.store.VersionOf(ctx, path)
	done(err)
	if err != nil {
		return 0, agency.WrapError("version", path, err)
	}
	return v, nil
}

// === versioned cache ===

func (r *Router) read(ctx context.Context, b *base) (any, bool, error) {
	ver, err := r.version(ctx, b.path)
	if err != nil {
		return nil, false, err
	}
	if snap, ok := r.cache.Get(b.path); ok && snap.version == ver {
		r.metrics.CacheHit(b.label)
		return snap.value, snap.found, nil
	}
	r.metrics.CacheMiss(b.label)

	// the version is read before the value, so a concurrent write can only
	// make the cached value newer than its tag, never older
	snap, _, err := r.flight.Do(fmt.Sprintf("%s@%d", b.path, ver), func() (snapshot, error) {
		value, found, err := r.get(ctx, b, true)
		if err != nil {
			return snapshot{}, err
		}
		s := snapshot{version: ver, value: value, found: found}
		r.cache.Put(b.path, s)
		r.log.Debug("refreshed", slog.String("path", b.path), slog.Uint64("version", ver))
		return s, nil
	})
	if err != nil {
		return nil, false, err
	}
	return snap.value, snap.found, nil
}

func (r *Router) changed(ctx context.Context, b *base) (bool, error) {
	ver, err := r.version(ctx, b.path)
	if err != nil {
		return false, err
	}
	snap, ok := r.cache.Get(b.path)
	return !ok || snap.version != ver, nil
}

// === helpers ===

func joinPath(path, key string) string { return agency.Join(path, key) }

func checkKey(key string) error {
	if key == "" || strings.Contains(key, "/") || agency.IsReserved(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func keysOf(value any) []string { return agency.Keys(value) }
