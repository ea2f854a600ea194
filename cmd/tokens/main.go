package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-auth-tokens/internal/connectors"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra/auth"
	"github.com/xela07ax/spaceai-auth-tokens/internal/tokens/handler"
	"github.com/xela07ax/spaceai-auth-tokens/internal/tokens/server"
	"github.com/xela07ax/spaceai-auth-tokens/internal/tokens/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// 3. Кодек токенов (секрет и алгоритм фиксированы на весь процесс)
	codec, err := auth.NewCodec(
		[]byte(cfg.Auth.JWTSecret),
		cfg.Auth.JWTAlgorithm,
		cfg.Auth.TokenTTL(),
		auth.WithIssuer(cfg.App.Name),
	)
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}

	// 4. Апстрим и сервисы (Dependency Injection)
	identity := connectors.NewIdentityClient(cfg.UserService, metrics, logger)
	tokenService := service.NewTokenService(identity, codec, metrics, logger)
	validationService := service.NewValidationService(codec, metrics, logger)

	// 5. HTTP Server
	api := server.NewTokenServer(
		cfg,
		logger,
		codec,
		handler.NewTokenHandler(tokenService, logger),
		handler.NewValidateHandler(validationService),
		handler.NewInfoHandler(cfg, identity),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Экспортируем метрики для Prometheus на отдельном листенере
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadTimeout: cfg.Server.ReadTimeout}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	// 6. Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("auth tokens service started",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.App.Environment),
			zap.String("user_service", cfg.UserService.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done(): // Ждем сигнал
	}
	logger.Info("auth tokens service stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("auth tokens service exited properly")
	return nil
}
