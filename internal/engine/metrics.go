package engine

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for the operations counter.
const (
	OutcomeApplied  = "applied"
	OutcomeReplayed = "replayed"
	OutcomeNoop     = "noop"
	OutcomeError    = "error"
)

// Metrics counts lifecycle outcomes. Replay-skips and no-ops are
// indistinguishable to callers; the counters tell them apart.
type Metrics struct {
	operations  *prometheus.CounterVec
	allocations *prometheus.CounterVec
}

// NewMetrics creates the lifecycle counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idemproxy",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Number of lifecycle calls by operation and outcome",
		}, []string{
			"op",
			"outcome",
		}),

		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idemproxy",
			Subsystem: "lifecycle",
			Name:      "allocations_total",
			Help:      "Number of object ids allocated by object type",
		}, []string{
			"type",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.allocations)
	}
	return m
}

func (m *Metrics) observe(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) allocated(t string) {
	m.allocations.WithLabelValues(t).Inc()
}

// Operations exposes the operations counter, for reporting and tests.
func (m *Metrics) Operations() *prometheus.CounterVec {
	return m.operations
}

// Allocations exposes the allocations counter.
func (m *Metrics) Allocations() *prometheus.CounterVec {
	return m.allocations
}
