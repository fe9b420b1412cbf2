package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector_Collect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := prometheus.NewRegistry()
	mc := NewMetricsCollector(db, reg, nil)
	mc.Collect()

	assert.Equal(t, 4, testutil.CollectAndCount(reg, "database_connections"))
	assert.Equal(t, float64(db.Stats().OpenConnections), testutil.ToFloat64(mc.dbConnectionsGauge.WithLabelValues("open")))
}
