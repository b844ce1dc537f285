// Package metrics provides abstract metrics interfaces that keep the core
// packages independent of any instrumentation backend. The route and topology
// packages define their own metric sets on top of these; adapters/prometheus
// implements them.
package metrics

// Timer measures the duration of an operation. Call ObserveDuration when
// the operation completes to record the elapsed time.
type Timer interface {
	// ObserveDuration records the elapsed time since the timer was created.
	ObserveDuration()
}
