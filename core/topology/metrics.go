package topology

// Metrics instruments mutations and reconciliation findings.
type Metrics interface {
	// Mutations: add_primary, add_secondary, add_pair, add_coordinator,
	// remove_server, move_shard
	MutationCompleted(op string, success bool)

	// DiffFindings reports the size of the latest diff for a scope pair
	// ("Target/Plan") and kind.
	DiffFindings(pair string, kind string, missing int, differences int)

	StaleServers(count int)
}

type nopMetrics struct{}

func (nopMetrics) MutationCompleted(string, bool)        {}
func (nopMetrics) DiffFindings(string, string, int, int) {}
func (nopMetrics) StaleServers(int)                      {}

// NopMetrics returns a no-op Metrics implementation.
func NopMetrics() Metrics { return nopMetrics{} }
