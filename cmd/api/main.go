package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/server"

	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	dbService := database.New()
	log.Info("Database health check", zap.Any("health", dbService.Health()))

	db := dbService.DB()
	if err := database.RunMigrations(db, "migrations", log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	srv := server.NewServer(cfg, log, db)

	done := make(chan struct{})
	go func() {
		waitForShutdown(srv, log)
		close(done)
	}()

	log.Info("Server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}

// waitForShutdown blocks until SIGINT or SIGTERM, then drains in-flight
// requests before releasing server resources.
func waitForShutdown(srv *server.Server, log *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := srv.Close(); err != nil {
		log.Error("Error closing server resources", zap.Error(err))
	}
	log.Info("Server exiting")
}
