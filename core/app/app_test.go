package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/clstr-agency/core/topology"
	"github.com/codewandler/clstr-agency/ports/agency"
)

func TestApp_Defaults(t *testing.T) {
	app, err := New(Config{})
	require.NoError(t, err)
	t.Cleanup(app.Stop)

	require.True(t, strings.HasPrefix(app.ID(), "agency-"))
	require.NotNil(t, app.Router())
	require.NotNil(t, app.Cluster())

	ctx := t.Context()
	require.NoError(t, app.Cluster().AddPrimary(ctx, "db1"))
	names, err := app.Cluster().Target.Servers.Names(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"db1"}, names)
}

func TestApp_PrefixAndStore(t *testing.T) {
	store := agency.NewMemStore()
	app, err := New(Config{ID: "test", Store: store, Prefix: "arango", CacheSize: -1})
	require.NoError(t, err)
	t.Cleanup(app.Stop)
	require.Equal(t, "test", app.ID())

	require.NoError(t, app.Cluster().AddCoordinator(t.Context(), "crdn1"))
	v, err := store.Get(t.Context(), "arango/Target/Coordinators/crdn1", false)
	require.NoError(t, err)
	require.Equal(t, "none", v)
}

func TestApp_StopCancelsContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := New(Config{Context: parent})
	require.NoError(t, err)
	app.Stop()

	<-app.Context().Done()
	require.ErrorIs(t, app.Context().Err(), context.Canceled)

	// mutations are refused once stopped
	err = app.Cluster().AddPrimary(t.Context(), "db1")
	require.Error(t, err)
	removal, err := app.Cluster().RemoveServer(t.Context(), "db1")
	require.Error(t, err)
	require.Equal(t, topology.NotFound, removal)
}
