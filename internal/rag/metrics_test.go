package rag

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsObserver(reg)
	ctx := context.Background()

	m.Observe(ctx, Outcome{State: StateDone, Candidates: 12, Duration: 40 * time.Millisecond})
	m.Observe(ctx, Outcome{State: StateDone, Candidates: 3, Duration: 20 * time.Millisecond})
	m.Observe(ctx, Outcome{State: StateDegraded, FailedAt: StateRetrieving})
	m.Observe(ctx, Outcome{State: StateEmptyQuestion})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues(string(StateDone))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues(string(StateDegraded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues(string(StateRetrieving))))
	assert.Equal(t, 3, testutil.CollectAndCount(reg, "rag_requests_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "rag_candidates" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}
