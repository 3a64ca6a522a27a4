package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wolfman30/careportal-chat/internal/app/bootstrap"
	appconfig "github.com/wolfman30/careportal-chat/internal/config"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting development portal",
		"env", cfg.Env,
		"port", cfg.Port,
		"fake_payments", cfg.AllowFakePayments,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir, closeDir, err := bootstrap.BuildDirectory(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up patient directory", "error", err)
		os.Exit(1)
	}
	defer closeDir()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		logger.Info("otp limits backed by redis", "addr", cfg.RedisAddr)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	portal, err := bootstrap.BuildPortalServer(ctx, cfg, bootstrap.PortalDeps{
		Directory: dir,
		Redis:     redisClient,
		Registry:  reg,
	}, logger)
	if err != nil {
		logger.Error("failed to build portal", "error", err)
		os.Exit(1)
	}
	if token, err := portal.HeadlessToken(24 * time.Hour); err == nil {
		logger.Info("headless csrf token issued; set CSRF_TOKEN to use it", "token", token)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      portal.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
