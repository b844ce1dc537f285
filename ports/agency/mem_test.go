package agency

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Memory(t *testing.T) {
	type Collection struct {
		Name   string            `json:"name"`
		Shards map[string]string `json:"shards"`
	}
	const path = "Plan/Databases/_system/Collections/100"
	s := NewMemStore()

	_, err := s.Get(t.Context(), path, true)
	require.ErrorIs(t, err, ErrNotFound)

	c := Collection{Name: "users", Shards: map[string]string{"s1": "db1", "s2": "db2"}}
	_, err = s.Set(t.Context(), path, c)
	require.NoError(t, err)

	v, err := s.Get(t.Context(), path, true)
	require.NoError(t, err)
	loaded, err := Decode[Collection](v)
	require.NoError(t, err)
	require.Equal(t, c, loaded)

	// maps are stored as subtrees
	v, err = s.Get(t.Context(), path+"/shards/s2", false)
	require.NoError(t, err)
	require.Equal(t, "db2", v)

	ok, err := s.Remove(t.Context(), path)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Get(t.Context(), path, true)
	require.ErrorIs(t, err, ErrNotFound)

	ok, err = s.Remove(t.Context(), path)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStore_GetNonRecursive(t *testing.T) {
	s := NewMemStore()
	_, err := s.Set(t.Context(), "Sync", map[string]any{
		"HeartbeatIntervalMs": 1000,
		"ServerStates": map[string]any{
			"db1": map[string]any{"status": "INSYNC"},
		},
	})
	require.NoError(t, err)

	flat, err := s.Get(t.Context(), "Sync", false)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"HeartbeatIntervalMs": float64(1000),
		"ServerStates":        map[string]any{},
	}, flat)

	deep, err := s.Get(t.Context(), "Sync", true)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"HeartbeatIntervalMs": float64(1000),
		"ServerStates": map[string]any{
			"db1": map[string]any{"status": "INSYNC"},
		},
	}, deep)
}

func TestMemStore_List(t *testing.T) {
	s := NewMemStore()
	for _, name := range []string{"c", "a", "Lock", "b"} {
		_, err := s.Set(t.Context(), Join("Target", "Coordinators", name), "none")
		require.NoError(t, err)
	}

	names, err := s.List(t.Context(), "Target/Coordinators", true)
	require.NoError(t, err)
	require.Equal(t, []string{"Lock", "a", "b", "c"}, names)
	require.Equal(t, []string{"a", "b", "c"}, FilterReserved(names))

	names, err = s.List(t.Context(), "Target/Coordinators/a", true)
	require.NoError(t, err)
	require.Empty(t, names)

	_, err = s.List(t.Context(), "Target/Nope", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_Versions(t *testing.T) {
	ctx := t.Context()
	s := NewMemStore()

	v0, err := s.VersionOf(ctx, "Target/DBServers")
	require.NoError(t, err)
	require.Zero(t, v0)

	_, err = s.Set(ctx, "Target/DBServers/db1", "none")
	require.NoError(t, err)

	v1, _ := s.VersionOf(ctx, "Target/DBServers")
	root1, _ := s.VersionOf(ctx, "")
	require.Greater(t, v1, v0)
	require.Equal(t, v1, root1)

	// writes to a sibling subtree leave the version alone
	_, err = s.Set(ctx, "Plan/DBServers/db1", "none")
	require.NoError(t, err)
	v2, _ := s.VersionOf(ctx, "Target/DBServers")
	require.Equal(t, v1, v2)

	// removing an ancestor bumps its descendants
	leaf1, _ := s.VersionOf(ctx, "Target/DBServers/db1")
	_, err = s.Remove(ctx, "Target")
	require.NoError(t, err)
	leaf2, _ := s.VersionOf(ctx, "Target/DBServers/db1")
	require.Greater(t, leaf2, leaf1)
}

func TestMemStore_AncestorWriteMovesUnwrittenDescendants(t *testing.T) {
	ctx := t.Context()
	s := NewMemStore()

	before, err := s.VersionOf(ctx, "Plan/DBServers")
	require.NoError(t, err)
	require.Zero(t, before)

	_, err = s.Set(ctx, "Plan", map[string]any{"DBServers": map[string]any{"db1": "none"}})
	require.NoError(t, err)

	servers, _ := s.VersionOf(ctx, "Plan/DBServers")
	leaf, _ := s.VersionOf(ctx, "Plan/DBServers/db1")
	plan, _ := s.VersionOf(ctx, "Plan")
	require.Greater(t, servers, before)
	require.Equal(t, plan, servers)
	require.Equal(t, plan, leaf)

	_, err = s.Set(ctx, "Plan/Databases/_system", map[string]any{
		"Collections": map[string]any{"1": map[string]any{"name": "a"}},
	})
	require.NoError(t, err)
	first, _ := s.VersionOf(ctx, "Plan/Databases/_system/Collections")
	servers2, _ := s.VersionOf(ctx, "Plan/DBServers")
	require.Equal(t, servers, servers2, "a sibling write leaves the subtree alone")

	_, err = s.Set(ctx, "Plan/Databases/_system", map[string]any{
		"Collections": map[string]any{
			"1": map[string]any{"name": "a"},
			"2": map[string]any{"name": "b"},
		},
	})
	require.NoError(t, err)
	second, _ := s.VersionOf(ctx, "Plan/Databases/_system/Collections")
	require.Greater(t, second, first)
}

func TestMemStore_ValuesAreCopies(t *testing.T) {
	s := NewMemStore()
	_, err := s.Set(t.Context(), "Target/Databases/_system/Collections/1", map[string]any{
		"name":   "users",
		"shards": map[string]any{"s1": "db1"},
	})
	require.NoError(t, err)

	v, err := s.Get(t.Context(), "Target/Databases/_system/Collections/1", true)
	require.NoError(t, err)
	v.(map[string]any)["shards"].(map[string]any)["s1"] = "tampered"

	again, err := s.Get(t.Context(), "Target/Databases/_system/Collections/1/shards/s1", true)
	require.NoError(t, err)
	require.Equal(t, "db1", again)
}

func TestPaths(t *testing.T) {
	require.Equal(t, "arango/Target/DBServers", Join("/arango/", "", "Target", "DBServers"))
	require.Equal(t, []string{"Plan", "Coordinators"}, Split("/Plan/Coordinators/"))
	require.Nil(t, Split("/"))
	require.Equal(t, []string{"a", "b"}, Keys(map[string]any{"b": 1, "Version": 2, "a": 3}))
}
