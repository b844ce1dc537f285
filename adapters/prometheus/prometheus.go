// Package prometheus provides Prometheus implementations of the metrics
// interfaces of the route and topology packages.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/clstr-agency/core/metrics"
)

// timer wraps a Prometheus histogram to implement the Timer interface.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for store round trips (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

// AllMetrics holds the Prometheus implementations for the router and the
// topology facade.
type AllMetrics struct {
	Router   *routerMetrics
	Topology *topologyMetrics
}

// NewAllMetrics registers every metric on reg.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Router:   NewRouterMetrics(reg).(*routerMetrics),
		Topology: NewTopologyMetrics(reg).(*topologyMetrics),
	}
}
