package router

import (
	"net/http"
	"time"

	"github.com/aihub/support-portal/app/controllers"
	"github.com/aihub/support-portal/app/middleware"
	"github.com/aihub/support-portal/internal/database"
	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// Deps 路由依赖
type Deps struct {
	Engine         *rag.Engine
	Health         *database.HealthChecker
	Errors         *apperrors.ErrorMonitor
	Logger         *zap.Logger
	MetricsHandler http.Handler
	Middleware     middleware.Options
	ChatTimeout    time.Duration
	Version        string
}

// Register 把路由和过滤器注册到指定路由器
func Register(h *web.ControllerRegister, deps Deps) error {
	base := controllers.BaseController{
		Errors:     deps.Errors,
		Translator: apperrors.NewErrorTranslator(),
	}

	mm := middleware.NewMiddlewareManager(deps.Logger, deps.Errors)
	mm.SetupDefaultMiddlewares(deps.Middleware)
	if err := mm.ApplyTo(h); err != nil {
		return err
	}

	root := &controllers.RootController{BaseController: base, Version: deps.Version}
	h.Add("/", root, web.WithRouterMethods(root, "get:Index"))

	health := &controllers.HealthController{BaseController: base, Checker: deps.Health, Engine: deps.Engine}
	h.Add("/api/health", health, web.WithRouterMethods(health, "get:Health"))

	chat := &controllers.ChatController{
		BaseController: base,
		Engine:         deps.Engine,
		Logger:         deps.Logger,
		Timeout:        deps.ChatTimeout,
	}
	h.Add("/api/chat", chat, web.WithRouterMethods(chat, "post:Chat"))

	metrics := &controllers.MetricsController{Handler: deps.MetricsHandler}
	h.Add("/metrics", metrics, web.WithRouterMethods(metrics, "get:Metrics"))
	return nil
}

// Init registers all routes on the default beego app. Must be called after config is loaded.
func Init(deps Deps) error {
	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	return Register(web.BeeApp.Handlers, deps)
}
