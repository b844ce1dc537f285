package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-agency/core/metrics"
	"github.com/codewandler/clstr-agency/core/route"
)

// routerMetrics implements route.Metrics using Prometheus.
type routerMetrics struct {
	storeOpDuration *prometheus.HistogramVec
	storeOpsTotal   *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// NewRouterMetrics creates a new Prometheus implementation of route.Metrics.
func NewRouterMetrics(reg prometheus.Registerer) route.Metrics {
	m := &routerMetrics{
		storeOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agency_store_op_duration_seconds",
			Help:    "Agency store round trip latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"op"}),

		storeOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_store_ops_total",
			Help: "Total number of agency store operations",
		}, []string{"op", "success"}),

		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_route_cache_hits_total",
			Help: "Versioned reads served from the cache",
		}, []string{"route"}),

		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agency_route_cache_misses_total",
			Help: "Versioned reads that refetched the subtree",
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.storeOpDuration,
		m.storeOpsTotal,
		m.cacheHits,
		m.cacheMisses,
	)

	return m
}

func (m *routerMetrics) StoreOpDuration(op string) metrics.Timer {
	return newTimer(m.storeOpDuration.WithLabelValues(op))
}

func (m *routerMetrics) StoreOpCompleted(op string, success bool) {
	m.storeOpsTotal.WithLabelValues(op, strconv.FormatBool(success)).Inc()
}

func (m *routerMetrics) CacheHit(route string) {
	m.cacheHits.WithLabelValues(route).Inc()
}

func (m *routerMetrics) CacheMiss(route string) {
	m.cacheMisses.WithLabelValues(route).Inc()
}

var _ route.Metrics = (*routerMetrics)(nil)
