// Package main is the entry point for pulse, the portfolio event pipeline.
// It wires the event bus to the signal, portfolio, drift and alert handlers,
// runs the periodic jobs and serves the HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/pulse/internal/config"
	"github.com/aristath/pulse/internal/di"
	notificationhandlers "github.com/aristath/pulse/internal/modules/notifications/handlers"
	rebalancinghandlers "github.com/aristath/pulse/internal/modules/rebalancing/handlers"
	riskhandlers "github.com/aristath/pulse/internal/modules/risk/handlers"
	"github.com/aristath/pulse/internal/server"
	"github.com/aristath/pulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting pulse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Bus:       container.EventBus,
		Databases: container.Databases(),
		Scheduler: container.Scheduler,
		Modules: []server.RouteRegistrar{
			rebalancinghandlers.NewHandler(container.RebalancingService, log),
			riskhandlers.NewHandler(container.RiskService, log),
			notificationhandlers.NewHandler(container.NotificationService, log),
		},
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
