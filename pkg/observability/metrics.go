package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors fed by skill lifecycle events.
type Metrics struct {
	turns       *prometheus.CounterVec
	turnErrors  *prometheus.CounterVec
	terminated  prometheus.Counter
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillflow_turns_total",
				Help: "Total number of turns served, by request type.",
			},
			[]string{"type"},
		),
		turnErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillflow_turn_errors_total",
				Help: "Total number of turns that returned an error, by request type.",
			},
			[]string{"type"},
		),
		terminated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "skillflow_sessions_terminated_total",
				Help: "Total number of turns that ended the conversation.",
			},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillflow_transitions_total",
				Help: "Total number of resolved transitions.",
			},
			[]string{"from", "to"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skillflow_turn_duration_seconds",
				Help:    "Duration of turns.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.turns, m.turnErrors, m.terminated, m.transitions, m.duration)
	return m
}

// Hooks returns lifecycle hooks that record into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			to := e.To
			if to == "" {
				to = "(end)"
			}
			m.transitions.WithLabelValues(e.From, to).Inc()
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			kind := string(e.Type)
			m.turns.WithLabelValues(kind).Inc()
			m.duration.WithLabelValues(kind).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.turnErrors.WithLabelValues(kind).Inc()
			}
			if e.Terminated {
				m.terminated.Inc()
			}
		},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
