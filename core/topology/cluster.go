package topology

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/codewandler/clstr-agency/core/ds"
	"github.com/codewandler/clstr-agency/core/perkey"
	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/ports/agency"
)

type Options struct {
	Router  *route.Router
	Log     *slog.Logger
	Metrics Metrics
}

// Cluster composes the three scopes, the heartbeat monitor and the diff
// engine. Target is the only writable scope.
//
// Read-modify-write mutations issued through Cluster are serialized per
// entity inside the process. Writers in other processes are not coordinated.
type Cluster struct {
	Target  *TargetScope
	Plan    *ScopeView
	Current *ScopeView
	Sync    *HeartbeatMonitor
	Diff    *DiffEngine

	sched   *perkey.Scheduler[string]
	log     *slog.Logger
	metrics Metrics
}

func New(opts Options) (*Cluster, error) {
	if opts.Router == nil {
		return nil, ErrRouterRequired
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NopMetrics()
	}
	log = log.With(slog.String("component", "cluster"))

	c := &Cluster{
		Target:  newTargetScope(opts.Router, log),
		Plan:    newScopeView(opts.Router, Plan, log),
		Current: newScopeView(opts.Router, Current, log),
		Sync:    newHeartbeatMonitor(opts.Router, log),
		sched:   perkey.New[string](),
		log:     log,
		metrics: m,
	}
	target := c.Target.View()
	c.Diff = &DiffEngine{
		Plan:    &ScopeDiff{sup: target, inf: c.Plan, metrics: m},
		Current: &ScopeDiff{sup: c.Plan, inf: c.Current, metrics: m},
	}
	return c, nil
}

// Close stops the mutation scheduler. Reads keep working.
func (c *Cluster) Close() { c.sched.Close() }

// Scope returns the read-only view of s.
func (c *Cluster) Scope(s Scope) (*ScopeView, bool) {
	switch s {
	case Target:
		return c.Target.View(), true
	case Plan:
		return c.Plan, true
	case Current:
		return c.Current, true
	default:
		return nil, false
	}
}

// serialization keys
var (
	serversKey      = agency.Join(string(Target), "DBServers")
	coordinatorsKey = agency.Join(string(Target), "Coordinators")
)

func collectionKey(db, collection string) string {
	return agency.Join(string(Target), "Databases", db, "Collections", collection)
}

func (c *Cluster) mutate(ctx context.Context, op, key string, fn func() error) error {
	err := c.sched.Do(ctx, key, fn)
	c.metrics.MutationCompleted(op, err == nil)
	return err
}

func (c *Cluster) AddPrimary(ctx context.Context, name string) error {
	return c.mutate(ctx, "add_primary", serversKey, func() error {
		return c.Target.Servers.AddPrimary(ctx, name)
	})
}

func (c *Cluster) AddSecondary(ctx context.Context, name, primaryName string) error {
	return c.mutate(ctx, "add_secondary", serversKey, func() error {
		return c.Target.Servers.AddSecondary(ctx, name, primaryName)
	})
}

func (c *Cluster) AddPair(ctx context.Context, primaryName, secondaryName string) error {
	return c.mutate(ctx, "add_pair", serversKey, func() error {
		return c.Target.Servers.AddPair(ctx, primaryName, secondaryName)
	})
}

func (c *Cluster) AddCoordinator(ctx context.Context, name string) error {
	return c.mutate(ctx, "add_coordinator", coordinatorsKey, func() error {
		return c.Target.Coordinators.Add(ctx, name)
	})
}

// RemoveServer removes name from the Target servers, or from the Target
// coordinators if no server is called that.
func (c *Cluster) RemoveServer(ctx context.Context, name string) (Removal, error) {
	res, err := perkey.Run(ctx, c.sched, serversKey, func() (Removal, error) {
		removal, err := c.Target.Servers.RemoveServer(ctx, name)
		if err != nil || removal != NotFound {
			return removal, err
		}
		ok, err := c.Target.Coordinators.Remove(ctx, name)
		if err != nil || !ok {
			return NotFound, err
		}
		return RemovedAsCoordinator, nil
	})
	c.metrics.MutationCompleted("remove_server", err == nil)
	if err == nil && res == NotFound {
		c.log.Debug("nothing to remove", slog.String("server", name))
	}
	return res, err
}

func (c *Cluster) shardMap(ctx context.Context, db, collection string) (*TargetShardMap, error) {
	view, ok, err := c.Target.Databases.Select(ctx, db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, db)
	}
	m, ok, err := view.CollectionShardMap(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrCollectionNotFound, db, collection)
	}
	return m, nil
}

// MoveShard assigns shard of db/collection to server in Target.
func (c *Cluster) MoveShard(ctx context.Context, db, collection, shard, server string) error {
	return c.mutate(ctx, "move_shard", collectionKey(db, collection), func() error {
		m, err := c.shardMap(ctx, db, collection)
		if err != nil {
			return err
		}
		return m.MoveShard(ctx, shard, server)
	})
}

// EvacuateShard moves shard away from its current holder to an in-sync
// Target primary chosen by SuggestServer and returns that server.
func (c *Cluster) EvacuateShard(ctx context.Context, db, collection, shard string) (string, error) {
	m, err := c.shardMap(ctx, db, collection)
	if err != nil {
		return "", err
	}
	holder, ok, err := m.ServerForShard(ctx, shard)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s in %s/%s", ErrShardNotFound, shard, db, collection)
	}

	primaries, err := c.Target.Servers.Primaries(ctx)
	if err != nil {
		return "", err
	}
	inSync, err := c.Sync.InSync(ctx)
	if err != nil {
		return "", err
	}
	candidates := ds.NewStringSet(inSync...).Filter(func(name string) bool {
		return name != holder && slices.Contains(primaries, name)
	})
	if candidates.IsEmpty() {
		return "", fmt.Errorf("%w for shard %s", ErrNoCandidate, shard)
	}
	target, ok := SuggestServer(shard, candidates.Values(), holder)
	if !ok {
		return "", fmt.Errorf("%w for shard %s", ErrNoCandidate, shard)
	}

	if err := c.MoveShard(ctx, db, collection, shard, target); err != nil {
		return "", err
	}
	return target, nil
}

// StaleServers returns the servers that missed their heartbeats at now.
func (c *Cluster) StaleServers(ctx context.Context, now time.Time) ([]string, error) {
	stale, err := c.Sync.Stale(ctx, now)
	if err != nil {
		return nil, err
	}
	c.metrics.StaleServers(len(stale))
	return stale, nil
}
