package topology

import (
	"context"
	"log/slog"
	"slices"

	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/ports/agency"
)

// DatabaseCatalog enumerates the databases of one scope.
type DatabaseCatalog struct {
	scope         Scope
	r             *route.Router
	databases     route.VersionChecker
	collectionOps route.Ops
	log           *slog.Logger
}

func newDatabaseCatalog(r *route.Router, scope Scope, databases route.VersionChecker, collectionOps route.Ops, log *slog.Logger) *DatabaseCatalog {
	return &DatabaseCatalog{scope: scope, r: r, databases: databases, collectionOps: collectionOps, log: log}
}

// List returns database names in alphabetical order.
func (c *DatabaseCatalog) List(ctx context.Context) ([]string, error) {
	names, err := c.databases.List(ctx)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Select binds the collections of db. Every call builds a fresh, independent
// view, so selections of different databases never disturb each other.
func (c *DatabaseCatalog) Select(ctx context.Context, db string) (*DatabaseView, bool, error) {
	dbRoute, ok, err := c.r.Resolve(ctx, c.databases, db)
	if err != nil || !ok {
		return nil, false, err
	}

	collections := c.r.AddLevel(dbRoute, "Collections", "Collections", readOps).(route.VersionChecker)
	c.r.AddDynamic(collections, "*", c.collectionOps)

	v, _, err := collections.Read(ctx)
	if err != nil {
		return nil, false, err
	}

	view := &DatabaseView{
		name:        db,
		catalog:     c,
		collections: collections,
		ids:         map[string]string{},
	}
	entries, _ := v.(map[string]any)
	// ids ascend, the first id claiming a name wins
	for _, id := range agency.Keys(entries) {
		entry, _ := entries[id].(map[string]any)
		name, _ := entry["name"].(string)
		if name == "" {
			continue
		}
		if prev, dup := view.ids[name]; dup {
			c.log.Warn("duplicate collection name",
				slog.String("database", db),
				slog.String("collection", name),
				slog.String("id", id),
				slog.String("kept", prev),
			)
			continue
		}
		view.ids[name] = id
		view.names = append(view.names, name)
	}
	slices.Sort(view.names)
	return view, true, nil
}

// DatabaseView is the immutable binding of one database's collections, taken
// when Select ran.
type DatabaseView struct {
	name        string
	catalog     *DatabaseCatalog
	collections route.VersionChecker
	ids         map[string]string
	names       []string
}

func (d *DatabaseView) Name() string { return d.name }

// Collections returns collection names in alphabetical order.
func (d *DatabaseView) Collections() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// CollectionID returns the store-internal id of the collection called name.
func (d *DatabaseView) CollectionID(name string) (string, bool) {
	id, ok := d.ids[name]
	return id, ok
}

func (d *DatabaseView) CollectionShardMap(ctx context.Context, name string) (*CollectionShardMap, bool, error) {
	id, ok := d.ids[name]
	if !ok {
		return nil, false, nil
	}
	rt, ok, err := d.catalog.r.Resolve(ctx, d.collections, id)
	if err != nil || !ok {
		return nil, false, err
	}
	return &CollectionShardMap{
		scope:      d.catalog.scope,
		database:   d.name,
		collection: name,
		id:         id,
		route:      rt.(route.VersionChecker),
		log:        d.catalog.log,
	}, true, nil
}

// TargetDatabaseCatalog hands out shard maps that can move shards.
type TargetDatabaseCatalog struct {
	*DatabaseCatalog
}

func (t *TargetDatabaseCatalog) Select(ctx context.Context, db string) (*TargetDatabaseView, bool, error) {
	view, ok, err := t.DatabaseCatalog.Select(ctx, db)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &TargetDatabaseView{DatabaseView: view}, true, nil
}

type TargetDatabaseView struct {
	*DatabaseView
}

func (t *TargetDatabaseView) CollectionShardMap(ctx context.Context, name string) (*TargetShardMap, bool, error) {
	m, ok, err := t.DatabaseView.CollectionShardMap(ctx, name)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &TargetShardMap{CollectionShardMap: m, w: m.route.(route.Writer)}, true, nil
}
