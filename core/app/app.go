package app

import (
	"context"
	"fmt"
	"log/slog"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/clstr-agency/core/cache"
	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/core/topology"
	"github.com/codewandler/clstr-agency/ports/agency"
)

const defaultCacheSize = 1024

type Config struct {
	Context context.Context
	Log     *slog.Logger
	// ID names this instance in logs (default: agency-<nanoid>).
	ID string

	// Store defaults to an in-memory store.
	Store agency.Store
	// Prefix roots the tree, e.g. "arango".
	Prefix string
	// CacheSize is the number of cached subtrees. Negative disables caching.
	CacheSize int

	RouterMetrics   route.Metrics
	TopologyMetrics topology.Metrics
}

type App struct {
	ctx       context.Context
	cancelCtx context.CancelFunc
	log       *slog.Logger
	id        string
	cache     cache.Cache
	router    *route.Router
	cluster   *topology.Cluster
}

func New(config Config) (app *App, err error) {
	app = &App{}

	// === identity ===
	app.id = config.ID
	if app.id == "" {
		app.id = fmt.Sprintf("agency-%s", gonanoid.Must(6))
	}

	// === logger ===
	if config.Log == nil {
		config.Log = slog.Default()
	}
	app.log = config.Log.With(slog.String("instance", app.id))

	// === context ===
	if config.Context == nil {
		config.Context = context.Background()
	}
	app.ctx, app.cancelCtx = context.WithCancel(config.Context)

	// === store ===
	store := config.Store
	if store == nil {
		store = agency.NewMemStore()
	}

	// === cache ===
	switch size := config.CacheSize; {
	case size < 0:
		app.cache = cache.NewNop()
	case size == 0:
		app.cache = cache.NewLRU(cache.LRUOpts{Size: defaultCacheSize})
	default:
		app.cache = cache.NewLRU(cache.LRUOpts{Size: size})
	}

	app.log.Debug("creating app",
		slog.String("prefix", config.Prefix),
		slog.Int("cache_size", config.CacheSize),
	)

	app.router, err = route.New(route.Options{
		Store:   store,
		Prefix:  config.Prefix,
		Cache:   app.cache,
		Log:     app.log,
		Metrics: config.RouterMetrics,
	})
	if err != nil {
		app.Stop()
		return nil, err
	}

	app.cluster, err = topology.New(topology.Options{
		Router:  app.router,
		Log:     app.log,
		Metrics: config.TopologyMetrics,
	})
	if err != nil {
		app.Stop()
		return nil, err
	}

	app.log.Info("app started")
	return app, nil
}

func (a *App) ID() string                 { return a.id }
func (a *App) Context() context.Context   { return a.ctx }
func (a *App) Router() *route.Router      { return a.router }
func (a *App) Cluster() *topology.Cluster { return a.cluster }
func (a *App) Log() *slog.Logger          { return a.log }

// Stop releases the scheduler and cache and cancels the app context. The
// store is owned by the caller.
func (a *App) Stop() {
	if a.cluster != nil {
		a.cluster.Close()
	}
	if c, ok := a.cache.(interface{ Close() }); ok {
		c.Close()
	}
	a.cancelCtx()
}
