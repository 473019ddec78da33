package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/pulse/internal/config"
	"github.com/aristath/pulse/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates the portfolio and notifications databases
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// portfolio.db - portfolios, holdings, suggestions, risk snapshots
	portfolioDB, err := openDatabase(cfg.DataDir, database.NamePortfolio, database.ProfileStandard)
	if err != nil {
		return nil, err
	}
	container.PortfolioDB = portfolioDB

	// notifications.db - per-user notifications, rebuildable from events
	notificationsDB, err := openDatabase(cfg.DataDir, database.NameNotifications, database.ProfileCache)
	if err != nil {
		portfolioDB.Close()
		return nil, err
	}
	container.NotificationsDB = notificationsDB

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func openDatabase(dataDir, name string, profile database.DatabaseProfile) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
