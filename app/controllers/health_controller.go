package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/aihub/support-portal/internal/database"
	"github.com/aihub/support-portal/internal/rag"
)

// RootController 服务信息
type RootController struct {
	BaseController
	Version string
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "support-portal",
		"version": c.Version,
	})
}

// HealthController 存储与模型服务的健康状态
type HealthController struct {
	BaseController
	Checker *database.HealthChecker
	Engine  *rag.Engine
}

// Health GET /api/health，任一存储组件失败时返回503
func (c *HealthController) Health() {
	aiReady := c.Engine != nil && c.Engine.Ready()
	if c.Checker == nil {
		c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "ai_ready": aiReady})
		return
	}

	ctx, cancel := context.WithTimeout(c.Ctx.Request.Context(), 5*time.Second)
	defer cancel()
	_ = c.Checker.Check(ctx)

	report := c.Checker.Report()
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, map[string]interface{}{
		"status":     report.Status,
		"components": report.Components,
		"ai_ready":   aiReady,
	})
}
