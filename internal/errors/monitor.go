package errors

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorMonitor 按错误码和接口统计API错误
type ErrorMonitor struct {
	errorCounter *prometheus.CounterVec
	responseTime *prometheus.HistogramVec

	stats      map[string]*ErrorStats
	statsMutex sync.RWMutex
}

// ErrorStats 错误统计信息
type ErrorStats struct {
	Code      string    `json:"code"`
	Type      string    `json:"type"`
	Endpoint  string    `json:"endpoint"`
	Count     int64     `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewErrorMonitor 创建错误监控器，reg为nil时注册到默认Registerer
func NewErrorMonitor(reg prometheus.Registerer) *ErrorMonitor {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ErrorMonitor{
		errorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_errors_total",
				Help: "Total number of API errors by code, type and endpoint",
			},
			[]string{"code", "type", "endpoint"},
		),
		responseTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_error_response_seconds",
				Help:    "Response time of requests that ended in an error",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "endpoint"},
		),
		stats: make(map[string]*ErrorStats),
	}
}

// RecordError 记录一次错误响应
func (em *ErrorMonitor) RecordError(appErr *AppError, endpoint string, responseTime time.Duration) {
	if appErr == nil {
		return
	}

	em.errorCounter.WithLabelValues(string(appErr.Code), appErr.Type.String(), endpoint).Inc()
	em.responseTime.WithLabelValues(string(appErr.Code), endpoint).Observe(responseTime.Seconds())

	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	key := string(appErr.Code) + ":" + endpoint
	stats, exists := em.stats[key]
	if !exists {
		stats = &ErrorStats{
			Code:      string(appErr.Code),
			Type:      appErr.Type.String(),
			Endpoint:  endpoint,
			FirstSeen: time.Now(),
		}
		em.stats[key] = stats
	}
	stats.Count++
	stats.LastSeen = time.Now()
}

// GetTopErrors 获取最常见的错误，数量相同按错误码排序
func (em *ErrorMonitor) GetTopErrors(limit int) []ErrorStats {
	em.statsMutex.RLock()
	list := make([]ErrorStats, 0, len(em.stats))
	for _, s := range em.stats {
		list = append(list, *s)
	}
	em.statsMutex.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Code+list[i].Endpoint < list[j].Code+list[j].Endpoint
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}

// Reset 重置内存统计
func (em *ErrorMonitor) Reset() {
	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()
	em.stats = make(map[string]*ErrorStats)
}
