package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aihub/support-portal/app/bootstrap"
	"github.com/aihub/support-portal/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	port, err := strconv.Atoi(app.Config.Server.Port)
	if err != nil {
		log.Fatalf("invalid server port %q: %v", app.Config.Server.Port, err)
	}
	web.BConfig.Listen.HTTPPort = port
	web.BConfig.AppName = "Support Portal"
	if app.Config.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	// web.Run不返回，收到信号时在此注销服务并释放连接
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		app.Shutdown()
		os.Exit(0)
	}()

	logger.Info("Starting Support Portal",
		zap.Int("port", port),
		zap.String("corpus_backend", app.Config.RAG.CorpusBackend),
		zap.String("ai_provider", app.Config.AI.Provider))
	web.Run()
}
