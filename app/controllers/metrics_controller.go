package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
	Handler http.Handler
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	handler := c.Handler
	if handler == nil {
		handler = promhttp.Handler()
	}
	handler.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
