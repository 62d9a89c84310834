package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the scheduler's Prometheus collectors. A nil *Metrics is safe
// to use — every method checks for a nil receiver and then does nothing.
type Metrics struct {
	roundsTotal          prometheus.Counter
	tasksCompletedTotal  prometheus.Counter
	personaCommentsTotal *prometheus.CounterVec
	idleRounds           prometheus.Gauge
}

// NewMetrics registers the scheduler's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		roundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_rounds_total",
			Help: "Total number of scheduler rounds executed.",
		}),
		tasksCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_tasks_completed_total",
			Help: "Total number of tasks transitioned to completed.",
		}),
		personaCommentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_persona_comments_total",
			Help: "Total number of persona comments produced, by severity.",
		}, []string{"severity"}),
		idleRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_idle_rounds",
			Help: "Current consecutive idle round count.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.roundsTotal, m.tasksCompletedTotal, m.personaCommentsTotal, m.idleRounds)
	}
	return m
}

func (m *Metrics) observeRound() {
	if m == nil {
		return
	}
	m.roundsTotal.Inc()
}

func (m *Metrics) observeTaskCompleted() {
	if m == nil {
		return
	}
	m.tasksCompletedTotal.Inc()
}

func (m *Metrics) observePersonaComment(severity string) {
	if m == nil {
		return
	}
	m.personaCommentsTotal.WithLabelValues(severity).Inc()
}

func (m *Metrics) setIdleRounds(n int) {
	if m == nil {
		return
	}
	m.idleRounds.Set(float64(n))
}
