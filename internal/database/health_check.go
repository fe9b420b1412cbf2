package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger 可被健康检查的组件，*sql.DB 直接满足
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker 存储组件健康检查器
type HealthChecker struct {
	logger        *logrus.Logger
	checkInterval time.Duration
	timeout       time.Duration
	components    map[string]Pinger
	results       map[string]HealthCheckResult
	mu            sync.RWMutex
	stopChan      chan struct{}
	running       bool
}

// HealthCheckResult 单个组件的检查结果
type HealthCheckResult struct {
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// HealthReport 汇总报告
type HealthReport struct {
	Status     string                       `json:"status"`
	Components map[string]HealthCheckResult `json:"components"`
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *logrus.Logger) *HealthChecker {
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthChecker{
		logger:        logger,
		checkInterval: 30 * time.Second,
		timeout:       5 * time.Second,
		components:    make(map[string]Pinger),
		results:       make(map[string]HealthCheckResult),
		stopChan:      make(chan struct{}),
	}
}

// Register 注册组件，nil组件忽略
func (hc *HealthChecker) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.components[name] = p
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// Start 开始定期检查，阻塞直到ctx结束或Stop
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	interval := hc.checkInterval
	stop := hc.stopChan
	hc.mu.Unlock()

	hc.logger.Info("Starting storage health checker")
	_ = hc.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.markStopped()
			return
		case <-stop:
			hc.markStopped()
			return
		case <-ticker.C:
			_ = hc.Check(ctx)
		}
	}
}

func (hc *HealthChecker) markStopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
	hc.logger.Info("Storage health checker stopped")
}

// Stop 停止健康检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	close(hc.stopChan)
	hc.stopChan = make(chan struct{})
}

// Check 检查所有组件，返回第一个失败组件的错误
func (hc *HealthChecker) Check(ctx context.Context) error {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.components))
	for name := range hc.components {
		names = append(names, name)
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		if err := hc.checkOne(ctx, name); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
	}
	return firstErr
}

func (hc *HealthChecker) checkOne(ctx context.Context, name string) error {
	hc.mu.RLock()
	p := hc.components[name]
	previous, seen := hc.results[name]
	hc.mu.RUnlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()
	err := p.PingContext(ctx)
	responseTime := time.Since(start)

	result := HealthCheckResult{
		Healthy:      err == nil,
		LastCheck:    time.Now(),
		ResponseTime: responseTime.String(),
	}
	entry := hc.logger.WithFields(logrus.Fields{
		"component":     name,
		"response_time": responseTime,
	})
	if err != nil {
		result.LastError = err.Error()
		entry.WithError(err).Warn("Health check failed")
	} else if seen && !previous.Healthy {
		entry.Info("Connection restored")
	} else {
		entry.Debug("Health check passed")
	}

	hc.mu.Lock()
	hc.results[name] = result
	hc.mu.Unlock()
	return err
}

// IsHealthy 所有已检查组件是否健康
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	if len(hc.results) < len(hc.components) {
		return false
	}
	for _, r := range hc.results {
		if !r.Healthy {
			return false
		}
	}
	return true
}

// Report 获取最近一次检查的汇总
func (hc *HealthChecker) Report() HealthReport {
	healthy := hc.IsHealthy()

	hc.mu.RLock()
	defer hc.mu.RUnlock()
	components := make(map[string]HealthCheckResult, len(hc.results))
	for name, r := range hc.results {
		components[name] = r
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	return HealthReport{Status: status, Components: components}
}
