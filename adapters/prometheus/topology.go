package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-agency/core/topology"
)

// topologyMetrics implements topology.Metrics using Prometheus.
type topologyMetrics struct {
	mutationsTotal *prometheus.CounterVec
	diffMissing    *prometheus.GaugeVec
	diffDifference *prometheus.GaugeVec
	staleServers   prometheus.Gauge
}

// NewTopologyMetrics creates a new Prometheus implementation of
// topology.Metrics.
func NewTopologyMetrics(reg prometheus.Registerer) topology.Metrics {
	m := &topologyMetrics{
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_topology_mutations_total",
			Help: "Total number of Target scope mutations",
		}, []string{"op", "success"}),

		diffMissing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agency_topology_diff_missing",
			Help: "Entries missing from the inferior scope in the latest diff",
		}, []string{"pair", "kind"}),

		diffDifference: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agency_topology_diff_differences",
			Help: "Entries that differ between the scopes in the latest diff",
		}, []string{"pair", "kind"}),

		staleServers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agency_topology_stale_servers",
			Help: "Servers that missed their heartbeats at the latest check",
		}),
	}

	reg.MustRegister(
		m.mutationsTotal,
		m.diffMissing,
		m.diffDifference,
		m.staleServers,
	)

	return m
}

func (m *topologyMetrics) MutationCompleted(op string, success bool) {
	m.mutationsTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

func (m *topologyMetrics) DiffFindings(pair, kind string, missing, differences int) {
	m.diffMissing.WithLabelValues(pair, kind).Set(float64(missing))
	m.diffDifference.WithLabelValues(pair, kind).Set(float64(differences))
}

func (m *topologyMetrics) StaleServers(count int) {
	m.staleServers.Set(float64(count))
}

var _ topology.Metrics = (*topologyMetrics)(nil)
