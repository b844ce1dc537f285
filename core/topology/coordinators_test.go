package topology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoordinators_AddRemove(t *testing.T) {
	ctx := t.Context()
	f := newFixture(t)
	for _, name := range []string{"crdn2", "crdn1"} {
		require.NoError(t, f.c.Target.Coordinators.Add(ctx, name))
	}
	f.set(t, "Target/Coordinators/Lock", "locked")

	names, err := f.c.Target.Coordinators.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"crdn1", "crdn2"}, names)

	ok, err := f.c.Target.Coordinators.Remove(ctx, "crdn1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.c.Target.Coordinators.Remove(ctx, "crdn1")
	require.NoError(t, err)
	require.False(t, ok)

	names, err = f.c.Target.Coordinators.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"crdn2"}, names)
}

func TestCoordinators_EmptyScope(t *testing.T) {
	f := newFixture(t)
	names, err := f.c.Current.Coordinators.List(t.Context())
	require.NoError(t, err)
	require.NotNil(t, names)
	require.Empty(t, names)
}
