package route

import "github.com/codewandler/clstr-agency/core/metrics"

// Metrics instruments store round trips and the versioned cache. Route labels
// are static names ("Plan/DBServers", "Target/Databases/*/Collections/*"),
// never raw paths.
type Metrics interface {
	// Store operations: get, set, remove, list, version
	StoreOpDuration(op string) metrics.Timer
	StoreOpCompleted(op string, success bool)

	CacheHit(route string)
	CacheMiss(route string)
}

type nopMetrics struct{}

func (nopMetrics) StoreOpDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopMetrics) StoreOpCompleted(string, bool)        {}
func (nopMetrics) CacheHit(string)                      {}
func (nopMetrics) CacheMiss(string)                     {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
