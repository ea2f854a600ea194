package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-auth-tokens/internal/connectors"
)

// Мок сервиса пользователей для локальной разработки.
func main() {
	addr := flag.String("addr", ":8001", "listen address")
	loginPath := flag.String("login-path", "/api/v1/auth/login", "login endpoint path")
	loginField := flag.String("login-field", "email", "login field name: email or username")
	latency := flag.Duration("latency", 0, "artificial latency for every request")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mock := connectors.NewMockUserService(connectors.MockOptions{
		LoginPath:  *loginPath,
		LoginField: *loginField,
		Latency:    *latency,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mock.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("mock user service started",
			zap.String("addr", srv.Addr),
			zap.String("active_user_id", connectors.MockActiveUserID),
			zap.String("inactive_user_id", connectors.MockInactiveUserID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
