package di

import (
	"context"
	"fmt"

	"github.com/aristath/pulse/internal/config"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/modules/drift"
	"github.com/aristath/pulse/internal/modules/notifications"
	"github.com/aristath/pulse/internal/modules/portfolio"
	"github.com/aristath/pulse/internal/modules/rebalancing"
	"github.com/aristath/pulse/internal/modules/risk"
	"github.com/aristath/pulse/internal/pipeline"
	"github.com/aristath/pulse/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices builds repositories, services and the event pipeline,
// and subscribes the pipeline handlers to the bus.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.PortfolioRepo = portfolio.NewRepository(container.PortfolioDB, log)
	container.NotificationsRepo = notifications.NewRepository(container.NotificationsDB.Conn())

	container.EventBus = events.NewBus(events.BusConfig{
		HistorySize:    cfg.EventHistorySize,
		HandlerTimeout: cfg.HandlerTimeout,
	}, log)

	container.NotificationService = notifications.NewService(container.NotificationsRepo, cfg.NotifyPerMinute, log)
	container.RebalancingService = rebalancing.NewService(rebalancing.NewEngine(), container.PortfolioRepo, cfg.SuggestionTTL, log)
	// No benchmark feed is configured; beta stays undefined.
	container.RiskService = risk.NewService(risk.NewEngine(cfg.RiskFreeRate), container.PortfolioRepo, nil, log)
	container.AdminNotifier = drift.NewAdminNotifier(container.NotificationService, cfg.AdminUserID, log)
	container.RetrainingTrigger = drift.NewRetrainingTrigger(drift.DefaultRetrainCooldown, log)

	container.Handlers = pipeline.Handlers{
		Signal: pipeline.NewSignalHandler(container.PortfolioRepo, container.RebalancingService, container.EventBus, log),
		Portfolio: pipeline.NewPortfolioHandler(container.PortfolioRepo, container.RiskService,
			container.RebalancingService, container.NotificationService, log),
		Drift: pipeline.NewDriftHandler(container.AdminNotifier, container.RetrainingTrigger, log),
		Alert: pipeline.NewAlertHandler(container.NotificationService, log),
	}
	container.UnsubscribeHandlers = pipeline.RegisterHandlers(container.EventBus, container.Handlers)

	if cfg.Backup != nil && cfg.Backup.Enabled {
		client, err := reliability.NewR2Client(ctx, cfg.Backup, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(client, container.Databases(), cfg.DataDir, log)
	}

	log.Info().Msg("Services initialized")
	return nil
}
