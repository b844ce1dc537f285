package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRouterMetrics(reg)
	require.NotNil(t, m)

	timer := m.StoreOpDuration("get")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.StoreOpCompleted("get", true)
	m.StoreOpCompleted("get", false)
	m.CacheHit("Plan/DBServers")
	m.CacheHit("Plan/DBServers")
	m.CacheMiss("Plan/DBServers")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["agency_store_op_duration_seconds"])
	assert.True(t, names["agency_store_ops_total"])

	rm := m.(*routerMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(rm.cacheHits.WithLabelValues("Plan/DBServers")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rm.storeOpsTotal.WithLabelValues("get", "false")))
}

func TestNewTopologyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTopologyMetrics(reg)
	require.NotNil(t, m)

	m.MutationCompleted("move_shard", true)
	m.DiffFindings("Target/Plan", "DBServers", 2, 1)
	m.DiffFindings("Target/Plan", "DBServers", 0, 3)
	m.StaleServers(4)

	tm := m.(*topologyMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(tm.mutationsTotal.WithLabelValues("move_shard", "true")))
	assert.Equal(t, 0.0, testutil.ToFloat64(tm.diffMissing.WithLabelValues("Target/Plan", "DBServers")))
	assert.Equal(t, 3.0, testutil.ToFloat64(tm.diffDifference.WithLabelValues("Target/Plan", "DBServers")))
	assert.Equal(t, 4.0, testutil.ToFloat64(tm.staleServers))
}

func TestNewAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	all := NewAllMetrics(reg)
	require.NotNil(t, all.Router)
	require.NotNil(t, all.Topology)

	// registering twice on the same registry must fail loudly
	require.Panics(t, func() { NewAllMetrics(reg) })
}
