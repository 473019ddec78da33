package di

import (
	"fmt"

	"github.com/aristath/pulse/internal/config"
	"github.com/aristath/pulse/internal/reliability"
	"github.com/aristath/pulse/internal/scheduler"
	"github.com/rs/zerolog"
)

type scheduledJob struct {
	schedule string
	job      scheduler.Job
}

// RegisterJobs creates the scheduler and registers every periodic job.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)

	jobs := []scheduledJob{
		{cfg.CleanupSchedule, scheduler.NewSuggestionCleanupJob(container.RebalancingService, container.NotificationService, log)},
		{cfg.RiskRefreshSchedule, scheduler.NewRiskRefreshJob(container.PortfolioRepo, container.RiskService, log)},
		{cfg.MaintenanceSchedule, reliability.NewDailyMaintenanceJob(container.Databases(), cfg.DataDir, log)},
	}
	if container.BackupService != nil {
		jobs = append(jobs, scheduledJob{cfg.Backup.Schedule, reliability.NewBackupJob(container.BackupService, cfg.Backup.Retention, log)})
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register %s job: %w", j.job.Name(), err)
		}
	}

	container.Scheduler = sched
	log.Info().Int("jobs", len(jobs)).Msg("Jobs registered")
	return nil
}
