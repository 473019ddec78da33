package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// Disk space thresholds of the maintenance job, in bytes.
const (
	DiskWarnBytes     = 1 << 30
	DiskCriticalBytes = 500 << 20
)

// DailyMaintenanceJob checks store integrity, truncates WAL files and
// watches free disk space
type DailyMaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	timeout   time.Duration
	diskFree  func(ctx context.Context, path string) (uint64, error)
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		timeout:   5 * time.Minute,
		diskFree:  freeBytes,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the maintenance steps. Integrity failures and critically low
// disk space are returned; WAL checkpoint failures are only logged.
func (j *DailyMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	start := time.Now()

	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("Database integrity check failed")
			return err
		}
	}

	for _, db := range j.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
		}
	}

	free, err := j.diskFree(ctx, j.dataDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Disk usage unavailable")
	} else {
		freeGB := float64(free) / 1e9
		switch {
		case free < DiskCriticalBytes:
			j.log.Error().Float64("free_gb", freeGB).Msg("Disk space critically low")
			return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
		case free < DiskWarnBytes:
			j.log.Warn().Float64("free_gb", freeGB).Msg("Disk space low")
		default:
			j.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")
		}
	}

	j.log.Info().
		Int("databases", len(j.databases)).
		Dur("duration", time.Since(start)).
		Msg("Daily maintenance completed")
	return nil
}

func freeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// BackupJob uploads a fresh backup and rotates old ones
type BackupJob struct {
	service *BackupService
	keep    int
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a backup job keeping the newest keep archives
func NewBackupJob(service *BackupService, keep int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		keep:    keep,
		timeout: 30 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// Run uploads a backup, then rotates. A rotation failure does not fail the job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}
	if _, err := j.service.Rotate(ctx, j.keep); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
