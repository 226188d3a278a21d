package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/abeflag/internal/ir"
)

// Metrics holds the pass counters. A nil *Metrics records nothing.
type Metrics struct {
	passes   *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abeflag_passes_total",
				Help: "Orchestration passes by outcome",
			},
			[]string{"outcome"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abeflag_module_outcomes_total",
				Help: "Terminal module statuses",
			},
			[]string{"module", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "abeflag_module_duration_seconds",
				Help:    "Time from RUNNING to a terminal status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"module"},
		),
	}
	for _, c := range []prometheus.Collector{m.passes, m.outcomes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) module(key string, status ir.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(key, string(status)).Inc()
	m.duration.WithLabelValues(key).Observe(elapsed.Seconds())
}

func (m *Metrics) pass(outcome ir.PassOutcome) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(string(outcome)).Inc()
}
