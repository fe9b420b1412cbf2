package middleware

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

const requestStartKey = "request_start"

// Options 中间件配置
type Options struct {
	CORSOrigins   []string
	ChatRateLimit int // 每个客户端每分钟的聊天请求数，0表示不限
}

type routeFilter struct {
	pattern string
	pos     int
	filter  web.FilterFunc
	opts    []web.FilterOpt
}

// MiddlewareManager 中间件管理器
type MiddlewareManager struct {
	logger  *zap.Logger
	monitor *apperrors.ErrorMonitor
	filters []routeFilter
}

// NewMiddlewareManager 创建中间件管理器
func NewMiddlewareManager(logger *zap.Logger, monitor *apperrors.ErrorMonitor) *MiddlewareManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MiddlewareManager{logger: logger, monitor: monitor}
}

// AddFilter 添加过滤器
func (mm *MiddlewareManager) AddFilter(pattern string, pos int, filter web.FilterFunc, opts ...web.FilterOpt) {
	mm.filters = append(mm.filters, routeFilter{pattern: pattern, pos: pos, filter: filter, opts: opts})
}

// SetupDefaultMiddlewares 设置默认中间件
func (mm *MiddlewareManager) SetupDefaultMiddlewares(opts Options) {
	mm.AddFilter("/*", web.BeforeRouter, mm.startTimer())
	mm.AddFilter("/*", web.BeforeRouter, NewCORSFilter(opts.CORSOrigins))
	mm.AddFilter("/api/chat", web.BeforeRouter, mm.jsonOnly())
	if opts.ChatRateLimit > 0 {
		mm.AddFilter("/api/chat", web.BeforeRouter, mm.rateLimit(NewRateLimiter(opts.ChatRateLimit, time.Minute)))
	}
	mm.AddFilter("/*", web.FinishRouter, mm.logging(), web.WithReturnOnOutput(false))
}

// ApplyTo 把过滤器注册到路由器
func (mm *MiddlewareManager) ApplyTo(h *web.ControllerRegister) error {
	for _, f := range mm.filters {
		if err := h.InsertFilter(f.pattern, f.pos, f.filter, f.opts...); err != nil {
			return err
		}
	}
	return nil
}

func (mm *MiddlewareManager) startTimer() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		ctx.Input.SetData(requestStartKey, time.Now())
	}
}

// logging 请求日志，按状态码选择级别
func (mm *MiddlewareManager) logging() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = http.StatusOK
		}

		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", status),
			zap.String("remote_addr", getClientIP(ctx)),
		}
		if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", time.Since(start)))
		}

		switch {
		case status >= 500:
			mm.logger.Error("Request completed", fields...)
		case status >= 400:
			mm.logger.Warn("Request completed", fields...)
		default:
			mm.logger.Info("Request completed", fields...)
		}
	}
}

// jsonOnly 聊天接口只接受JSON请求体
func (mm *MiddlewareManager) jsonOnly() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		if ctx.Input.Method() != http.MethodPost {
			return
		}
		contentType := ctx.Input.Header("Content-Type")
		if contentType == "" || strings.HasPrefix(contentType, "application/json") {
			return
		}
		mm.reject(ctx, http.StatusUnsupportedMediaType, apperrors.NewInvalidInputError("Content-Type", "must be application/json"))
	}
}

func (mm *MiddlewareManager) rateLimit(limiter *RateLimiter) web.FilterFunc {
	return func(ctx *beecontext.Context) {
		if ctx.Input.Method() != http.MethodPost {
			return
		}
		if limiter.Allow(getClientIP(ctx)) {
			return
		}
		mm.reject(ctx, http.StatusTooManyRequests, apperrors.NewValidationError("Too many requests"))
	}
}

func (mm *MiddlewareManager) reject(ctx *beecontext.Context, status int, appErr *apperrors.AppError) {
	if mm.monitor != nil {
		mm.monitor.RecordError(appErr, ctx.Input.URL(), 0)
	}
	ctx.Output.SetStatus(status)
	_ = ctx.Output.JSON(map[string]interface{}{
		"reply": appErr.Message,
		"error": string(appErr.Code),
	}, false, false)
}

// getClientIP 获取客户端IP
func getClientIP(ctx *beecontext.Context) string {
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := ctx.Input.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return ctx.Input.IP()
}
