package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// MetricsCollector 连接池指标收集器
type MetricsCollector struct {
	db              *sql.DB
	logger          *logrus.Logger
	collectInterval time.Duration

	dbConnectionsGauge *prometheus.GaugeVec
	dbWaitDuration     prometheus.Gauge
}

// NewMetricsCollector 创建指标收集器，reg为nil时注册到默认Registerer
func NewMetricsCollector(db *sql.DB, reg prometheus.Registerer, logger *logrus.Logger) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = logrus.New()
	}
	factory := promauto.With(reg)

	return &MetricsCollector{
		db:              db,
		logger:          logger,
		collectInterval: 15 * time.Second,
		dbConnectionsGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "database_connections",
				Help: "Number of database connections in different states",
			},
			[]string{"state"}, // idle, in_use, open, wait_count
		),
		dbWaitDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "database_connection_wait_seconds",
			Help: "Total time blocked waiting for a new connection",
		}),
	}
}

// Start 定期收集，阻塞直到ctx结束
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting database metrics collection")

	ticker := time.NewTicker(mc.collectInterval)
	defer ticker.Stop()

	mc.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.Collect()
		}
	}
}

// Collect 收集一次连接池统计
func (mc *MetricsCollector) Collect() {
	stats := mc.db.Stats()

	mc.dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
	mc.dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	mc.dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
	mc.dbConnectionsGauge.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
	mc.dbWaitDuration.Set(stats.WaitDuration.Seconds())

	mc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
		"wait":   stats.WaitCount,
	}).Debug("Database connection pool stats collected")
}
