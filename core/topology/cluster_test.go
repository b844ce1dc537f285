package topology

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-agency/core/cache"
	"github.com/codewandler/clstr-agency/core/route"
	"github.com/codewandler/clstr-agency/ports/agency"
)

type recordingMetrics struct {
	mu        sync.Mutex
	mutations map[string]int
	findings  map[string][2]int
	stale     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{mutations: map[string]int{}, findings: map[string][2]int{}}
}

func (m *recordingMetrics) MutationCompleted(op string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.mutations[op]++
	}
}

func (m *recordingMetrics) DiffFindings(pair, kind string, missing, differences int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[pair+" "+kind] = [2]int{missing, differences}
}

func (m *recordingMetrics) StaleServers(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = count
}

type fixture struct {
	c       *Cluster
	store   *agency.MemStore
	metrics *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := agency.NewMemStore()
	lru := cache.NewLRU(cache.LRUOpts{Size: 128})
	t.Cleanup(lru.Close)
	r, err := route.New(route.Options{Store: store, Cache: lru})
	require.NoError(t, err)

	m := newRecordingMetrics()
	c, err := New(Options{Router: r, Metrics: m})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return &fixture{c: c, store: store, metrics: m}
}

func (f *fixture) set(t *testing.T, path string, value any) {
	t.Helper()
	_, err := f.store.Set(context.Background(), path, value)
	require.NoError(t, err)
}

func (f *fixture) seedCollection(t *testing.T, scope Scope, db, id, name string, shards map[string]any) {
	t.Helper()
	f.set(t, agency.Join(string(scope), "Databases", db, "Collections", id), map[string]any{
		"name":   name,
		"shards": shards,
	})
}

func TestNew_RequiresRouter(t *testing.T) {
	_, err := New(Options{})
	require.ErrorIs(t, err, ErrRouterRequired)
}

func TestCluster_RemoveServerFallsBackToCoordinators(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	require.NoError(t, f.c.AddPrimary(ctx, "db1"))
	require.NoError(t, f.c.AddCoordinator(ctx, "crdn1"))

	removal, err := f.c.RemoveServer(ctx, "crdn1")
	require.NoError(t, err)
	require.Equal(t, RemovedAsCoordinator, removal)

	coordinators, err := f.c.Target.Coordinators.List(ctx)
	require.NoError(t, err)
	require.Empty(t, coordinators)

	removal, err = f.c.RemoveServer(ctx, "ghost")
	require.NoError(t, err)
	require.Equal(t, NotFound, removal)
	require.Equal(t, "not-found", removal.String())

	removal, err = f.c.RemoveServer(ctx, "db1")
	require.NoError(t, err)
	require.Equal(t, RemovedAsPrimary, removal)

	require.Equal(t, 3, f.metrics.mutations["remove_server"])
	require.Equal(t, 1, f.metrics.mutations["add_primary"])
	require.Equal(t, 1, f.metrics.mutations["add_coordinator"])
}

func TestCluster_MoveShardIsolation(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	f.seedCollection(t, Target, "_system", "100", "users", map[string]any{
		"s1": "db1",
		"s2": "db2",
		"s3": "db1",
	})

	require.NoError(t, f.c.MoveShard(ctx, "_system", "users", "s1", "db3"))

	view, ok, err := f.c.Target.Databases.Select(ctx, "_system")
	require.NoError(t, err)
	require.True(t, ok)
	m, ok, err := view.CollectionShardMap(ctx, "users")
	require.NoError(t, err)
	require.True(t, ok)

	info, err := m.Info(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"s1": "db3", "s2": "db2", "s3": "db1"}, info)

	// the rest of the collection object survives the rewrite
	name, err := f.store.Get(ctx, "Target/Databases/_system/Collections/100/name", false)
	require.NoError(t, err)
	require.Equal(t, "users", name)
	require.Equal(t, 1, f.metrics.mutations["move_shard"])
}

func TestCluster_MoveShardKeepsFollowers(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	f.seedCollection(t, Target, "_system", "100", "users", map[string]any{
		"s1": []any{"db1", "db2"},
	})

	require.NoError(t, f.c.MoveShard(ctx, "_system", "users", "s1", "db3"))

	v, err := f.store.Get(ctx, "Target/Databases/_system/Collections/100/shards/s1", true)
	require.NoError(t, err)
	require.Equal(t, []any{"db3", "db2"}, v)
}

func TestCluster_MoveShardToFollower(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	f.seedCollection(t, Target, "_system", "100", "users", map[string]any{
		"s1": []any{"db1", "db2", "db3"},
	})

	require.NoError(t, f.c.MoveShard(ctx, "_system", "users", "s1", "db3"))

	v, err := f.store.Get(ctx, "Target/Databases/_system/Collections/100/shards/s1", true)
	require.NoError(t, err)
	require.Equal(t, []any{"db3", "db2"}, v)
}

func TestCluster_MoveShardNotFound(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	f.seedCollection(t, Target, "_system", "100", "users", map[string]any{"s1": "db1"})

	err := f.c.MoveShard(ctx, "nope", "users", "s1", "db2")
	require.ErrorIs(t, err, ErrDatabaseNotFound)
	require.ErrorIs(t, err, ErrNotFound)

	err = f.c.MoveShard(ctx, "_system", "orders", "s1", "db2")
	require.ErrorIs(t, err, ErrCollectionNotFound)

	err = f.c.MoveShard(ctx, "_system", "users", "s9", "db2")
	require.ErrorIs(t, err, ErrShardNotFound)
	require.Zero(t, f.metrics.mutations["move_shard"])
}

func TestCluster_ConcurrentMovesOnOneCollection(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	shards := map[string]any{}
	for _, s := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		shards[s] = "db1"
	}
	f.seedCollection(t, Target, "_system", "100", "users", shards)

	var wg sync.WaitGroup
	for s := range shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.c.MoveShard(ctx, "_system", "users", s, "db2")
		}()
	}
	wg.Wait()

	view, _, err := f.c.Target.Databases.Select(ctx, "_system")
	require.NoError(t, err)
	m, _, err := view.CollectionShardMap(ctx, "users")
	require.NoError(t, err)
	moved, err := m.ShardsForServer(ctx, "db2")
	require.NoError(t, err)
	require.Len(t, moved, 8, "serialized moves must not lose each other's writes")
}

func TestCluster_EvacuateShard(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	now := time.Now().UTC().Format(time.RFC3339)
	require.NoError(t, f.c.AddPair(ctx, "db1", "db4"))
	require.NoError(t, f.c.AddPrimary(ctx, "db2"))
	require.NoError(t, f.c.AddPrimary(ctx, "db3"))
	f.set(t, "Sync/ServerStates", map[string]any{
		"db1": map[string]any{"status": StatusServingSync, "time": now},
		"db2": map[string]any{"status": StatusInSync, "time": now},
		"db3": map[string]any{"status": StatusSyncing, "time": now},
		"db4": map[string]any{"status": StatusInSync, "time": now},
	})
	f.seedCollection(t, Target, "_system", "100", "users", map[string]any{"s1": "db1"})

	// db3 is out of sync and db4 is a secondary, db1 holds the shard
	to, err := f.c.EvacuateShard(ctx, "_system", "users", "s1")
	require.NoError(t, err)
	require.Equal(t, "db2", to)

	_, err = f.c.EvacuateShard(ctx, "_system", "users", "s1")
	require.NoError(t, err, "db1 is a candidate again once db2 holds the shard")

	_, err = f.c.EvacuateShard(ctx, "_system", "users", "s9")
	require.ErrorIs(t, err, ErrShardNotFound)
}

func TestCluster_EvacuateShardWithoutCandidate(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	require.NoError(t, f.c.AddPrimary(ctx, "db1"))
	f.seedCollection(t, Target, "_system", "100", "users", map[string]any{"s1": "db1"})

	_, err := f.c.EvacuateShard(ctx, "_system", "users", "s1")
	require.ErrorIs(t, err, ErrNoCandidate)
}

func TestCluster_Report(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, f.c.AddPair(ctx, "db1", "db2"))
	require.NoError(t, f.c.AddCoordinator(ctx, "crdn1"))
	f.set(t, "Plan/Coordinators/crdn1", "none")
	f.set(t, "Sync/HeartbeatIntervalMs", 1000)
	f.set(t, "Sync/ServerStates/db1", map[string]any{
		"status": StatusServingSync,
		"time":   now.Add(-5 * time.Second).Format(time.RFC3339),
	})

	rep, err := f.c.Report(ctx, now)
	require.NoError(t, err)
	require.Equal(t, time.Second, rep.HeartbeatInterval)
	require.Len(t, rep.Servers[Target], 2)
	require.Empty(t, rep.Servers[Plan])
	require.Equal(t, []string{"crdn1"}, rep.Coordinators[Plan])
	require.Len(t, rep.Diffs, 4)
	require.Equal(t, []string{"db1", "db2"}, rep.Diffs[0].Missing)
	require.True(t, rep.Diffs[1].Empty())
	require.Equal(t, []string{"db1"}, rep.Stale)

	require.Equal(t, [2]int{2, 0}, f.metrics.findings["Target/Plan DBServers"])
	require.Equal(t, [2]int{1, 0}, f.metrics.findings["Plan/Current Coordinators"])
	require.Equal(t, 1, f.metrics.stale)
}

func TestCluster_ScopeLookup(t *testing.T) {
	f := newFixture(t)
	for _, s := range []Scope{Target, Plan, Current} {
		view, ok := f.c.Scope(s)
		require.True(t, ok)
		require.Equal(t, s, view.Scope)
	}
	_, ok := f.c.Scope("Elsewhere")
	require.False(t, ok)
}
