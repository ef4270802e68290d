package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts session activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	writes          *prometheus.CounterVec
	migrations      *prometheus.CounterVec
	crashCandidates prometheus.Counter
	recomputes      *prometheus.CounterVec
}

// NewMetrics creates the session counters and registers them with reg. A
// nil reg leaves them unregistered, which tests use to read values directly.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftkeep",
			Name:      "draft_writes_total",
			Help:      "Draft writes by trigger mode and outcome.",
		}, []string{"mode", "outcome"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftkeep",
			Name:      "draft_migrations_total",
			Help:      "Legacy key migrations by outcome.",
		}, []string{"outcome"}),
		crashCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "draftkeep",
			Name:      "crash_candidates_total",
			Help:      "Crash candidates offered for recovery.",
		}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "draftkeep",
			Name:      "recomputes_total",
			Help:      "Debounced recomputations by kind (validate, score).",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.writes, m.migrations, m.crashCandidates, m.recomputes)
	}
	return m
}

func (m *Metrics) write(mode WriteMode, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(string(mode), outcome).Inc()
}

func (m *Metrics) migration(outcome MigrateOutcome) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) candidates(n int) {
	if m == nil || n == 0 {
		return
	}
	m.crashCandidates.Add(float64(n))
}

func (m *Metrics) recompute(kind string) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(kind).Inc()
}
