package rag

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsObserver 将问答终态记录为Prometheus指标
type MetricsObserver struct {
	outcomes   *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	candidates prometheus.Histogram
}

// NewMetricsObserver 创建指标观察者，reg为nil时注册到默认Registerer
func NewMetricsObserver(reg prometheus.Registerer) *MetricsObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &MetricsObserver{
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_requests_total",
				Help: "Total number of RAG runs by terminal state",
			},
			[]string{"state"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rag_failures_total",
				Help: "Total number of degraded RAG runs by failing stage",
			},
			[]string{"stage"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rag_request_duration_seconds",
				Help:    "Duration of RAG runs",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"state"},
		),
		candidates: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rag_candidates",
				Help:    "Number of candidate chunks fetched per run",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
			},
		),
	}
}

func (m *MetricsObserver) Observe(ctx context.Context, outcome Outcome) {
	state := string(outcome.State)
	m.outcomes.WithLabelValues(state).Inc()
	m.duration.WithLabelValues(state).Observe(outcome.Duration.Seconds())

	if outcome.State == StateDegraded {
		m.failures.WithLabelValues(string(outcome.FailedAt)).Inc()
		return
	}
	if outcome.State != StateEmptyQuestion {
		m.candidates.Observe(float64(outcome.Candidates))
	}
}
