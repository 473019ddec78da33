// Package di provides dependency injection for the pulse pipeline.
package di

import (
	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/modules/drift"
	"github.com/aristath/pulse/internal/modules/notifications"
	"github.com/aristath/pulse/internal/modules/portfolio"
	"github.com/aristath/pulse/internal/modules/rebalancing"
	"github.com/aristath/pulse/internal/modules/risk"
	"github.com/aristath/pulse/internal/pipeline"
	"github.com/aristath/pulse/internal/reliability"
	"github.com/aristath/pulse/internal/scheduler"
)

// Container holds all application dependencies.
// It is created by Wire and handed to the server and main.
type Container struct {
	// Databases
	PortfolioDB     *database.DB
	NotificationsDB *database.DB

	// Repositories
	PortfolioRepo     *portfolio.Repository
	NotificationsRepo *notifications.Repository

	// Services
	EventBus            *events.Bus
	NotificationService *notifications.Service
	RebalancingService  *rebalancing.Service
	RiskService         *risk.Service
	AdminNotifier       *drift.AdminNotifier
	RetrainingTrigger   *drift.RetrainingTrigger
	BackupService       *reliability.BackupService // nil unless backups are enabled
	Handlers            pipeline.Handlers
	UnsubscribeHandlers func()

	Scheduler *scheduler.Scheduler
}

// Databases returns every open database in a stable order
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.PortfolioDB, c.NotificationsDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close unsubscribes the pipeline, stops the scheduler and closes the databases
func (c *Container) Close() {
	if c.UnsubscribeHandlers != nil {
		c.UnsubscribeHandlers()
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	for _, db := range c.Databases() {
		_ = db.Close()
	}
}
