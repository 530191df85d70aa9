package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/app"
	"github.com/park285/cheese-trainer/internal/config"
	"github.com/park285/cheese-trainer/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Build(bctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}

	go deps.Hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- deps.Server.Listen(cfg.HTTPAddr) }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("http_error", zap.Error(err))
		}
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := deps.Server.Close(sctx); err != nil {
		logger.Warn("http_shutdown", zap.Error(err))
	}
	if err := deps.Close(); err != nil {
		logger.Warn("close_error", zap.Error(err))
	}
}
