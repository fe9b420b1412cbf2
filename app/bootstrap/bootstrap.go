package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/aihub/support-portal/app/middleware"
	"github.com/aihub/support-portal/app/router"
	"github.com/aihub/support-portal/internal/config"
	"github.com/aihub/support-portal/internal/di"
	"github.com/aihub/support-portal/internal/discovery"
	apperrors "github.com/aihub/support-portal/internal/errors"
	"github.com/aihub/support-portal/internal/logger"
	"github.com/aihub/support-portal/internal/rag"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Version 构建时通过-ldflags注入
var Version = "dev"

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config       *config.Config
	Engine       *rag.Engine
	container    *dig.Container
	cleanupTasks []func() error
	cancel       context.CancelFunc
}

// Global app instance
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Load 加载.env、日志和配置，命令行工具与HTTP服务共用
func Load() (*config.Loader, *config.Config, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, nil, err
	}

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return loader, cfg, nil
}

// Init bootstraps configuration, logger, storage connections and the RAG engine,
// then registers the HTTP routes.
func Init() (*App, error) {
	loader, cfg, err := Load()
	if err != nil {
		return nil, err
	}

	container, err := di.Build(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, container: container}
	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	var resources *di.Resources
	var storage *di.Storage
	err = di.Invoke(func(engine *rag.Engine, res *di.Resources, st *di.Storage) {
		app.Engine = engine
		resources = res
		storage = st
	})
	if err != nil {
		cancel()
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, resources.Close)

	if !app.Engine.Ready() {
		logger.Warn("AI provider not configured, chat requests will be degraded",
			zap.String("provider", cfg.AI.Provider))
	}

	go resources.Health.Start(ctx)
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		resources.Health.Stop()
		return nil
	})
	if storage.Metrics != nil {
		go storage.Metrics.Start(ctx)
	}

	// RAG参数支持热更新，其余配置需要重启
	loader.OnChange(func(newCfg *config.Config) {
		app.Engine.SetTopK(newCfg.RAG.TopK)
		logger.Info("Configuration reloaded", zap.Int("top_k", app.Engine.TopK()))
	})
	loader.Watch(func(err error) {
		logger.Warn("Ignoring invalid configuration change", zap.Error(err))
	})

	err = router.Init(router.Deps{
		Engine: app.Engine,
		Health: resources.Health,
		Errors: apperrors.NewErrorMonitor(prometheus.DefaultRegisterer),
		Logger: logger.GetLogger(),
		Middleware: middleware.Options{
			CORSOrigins:   cfg.Server.CORSOrigins,
			ChatRateLimit: cfg.Server.ChatRateLimit,
		},
		ChatTimeout: cfg.Server.ChatTimeout,
		Version:     Version,
	})
	if err != nil {
		app.Shutdown()
		return nil, err
	}

	app.register(cfg)

	globalApp = app
	return app, nil
}

// register 注册到服务发现，失败不影响对外服务
func (a *App) register(cfg *config.Config) {
	registrar, err := discovery.New(cfg.Discovery, logger.GetLogger())
	if err != nil {
		logger.Warn("Service discovery disabled", zap.Error(err))
		return
	}
	inst, err := discovery.NewInstance(cfg, Version)
	if err != nil {
		logger.Warn("Service discovery disabled", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := registrar.Register(ctx, inst); err != nil {
		logger.Warn("Service registration failed",
			zap.String("provider", cfg.Discovery.Provider),
			zap.Error(err))
		return
	}

	a.cleanupTasks = append(a.cleanupTasks, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return registrar.Deregister(ctx)
	})
}

// Container 返回依赖注入容器
func (a *App) Container() *dig.Container {
	return a.container
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	logger.Sync()
}
