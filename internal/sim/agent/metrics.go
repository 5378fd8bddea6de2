package agent

import (
	"github.com/prometheus/client_golang/prometheus"

	"idlecraft.ai/internal/sim/tasks"
)

// Metrics exposes Prometheus collectors for agent behaviour.
type Metrics struct {
	decisions   *prometheus.CounterVec
	skips       *prometheus.CounterVec
	bankTrips   *prometheus.CounterVec
	completions *prometheus.CounterVec
	recoveries  *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	taskQueue   prometheus.Gauge
}

// MustNewMetrics registers the collectors with reg and panics on conflict.
// Tests should pass a fresh registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlecraft",
			Subsystem: "agent",
			Name:      "decisions_total",
			Help:      "Decisions committed by the agent loop, by kind.",
		}, []string{"kind"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlecraft",
			Subsystem: "agent",
			Name:      "task_skips_total",
			Help:      "Tasks skipped as impossible, by reason.",
		}, []string{"reason"}),
		bankTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlecraft",
			Subsystem: "agent",
			Name:      "banking_total",
			Help:      "Banking sequences run at a bank, by handler result.",
		}, []string{"result"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlecraft",
			Subsystem: "agent",
			Name:      "activity_completions_total",
			Help:      "Completed activity repetitions, by skill.",
		}, []string{"skill"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlecraft",
			Subsystem: "agent",
			Name:      "recoveries_total",
			Help:      "State recoveries (desync, off path, overflow, orphaned state).",
		}, []string{"kind"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlecraft",
			Subsystem: "tasks",
			Name:      "outcomes_total",
			Help:      "Tasks leaving the work list, by outcome.",
		}, []string{"outcome", "skill"}),
		taskQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "idlecraft",
			Subsystem: "tasks",
			Name:      "queued",
			Help:      "Tasks currently in the work list.",
		}),
	}
	reg.MustRegister(m.decisions, m.skips, m.bankTrips, m.completions, m.recoveries, m.outcomes, m.taskQueue)
	return m
}

// ObserveOutcome is a tasks.OutcomeListener.
func (m *Metrics) ObserveOutcome(o tasks.Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(string(o.Kind), o.Skill).Inc()
}

func (m *Metrics) decision(kind DecisionKind) {
	if m != nil {
		m.decisions.WithLabelValues(string(kind)).Inc()
	}
}

func (m *Metrics) skip(reason string) {
	if m != nil {
		m.skips.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) banked(result string) {
	if m != nil {
		m.bankTrips.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) completed(skill string) {
	if m != nil {
		m.completions.WithLabelValues(skill).Inc()
	}
}

func (m *Metrics) recovered(kind string) {
	if m != nil {
		m.recoveries.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) queued(n int) {
	if m != nil {
		m.taskQueue.Set(float64(n))
	}
}
