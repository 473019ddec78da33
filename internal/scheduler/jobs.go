package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/rs/zerolog"
)

// SuggestionPurger deletes expired rebalancing suggestions
type SuggestionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// LimiterPruner drops idle notification alert limiters
type LimiterPruner interface {
	PruneLimiters(idle time.Duration) int
}

// SuggestionCleanupJob purges expired suggestions and idle throttling state
type SuggestionCleanupJob struct {
	purger  SuggestionPurger
	pruner  LimiterPruner
	idle    time.Duration
	timeout time.Duration
	log     zerolog.Logger
}

// NewSuggestionCleanupJob creates the cleanup job. pruner may be nil.
func NewSuggestionCleanupJob(purger SuggestionPurger, pruner LimiterPruner, log zerolog.Logger) *SuggestionCleanupJob {
	return &SuggestionCleanupJob{
		purger:  purger,
		pruner:  pruner,
		idle:    time.Hour,
		timeout: time.Minute,
		log:     log.With().Str("job", "suggestion_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *SuggestionCleanupJob) Name() string {
	return "suggestion_cleanup"
}

// Run executes the cleanup
func (j *SuggestionCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge expired suggestions: %w", err)
	}

	pruned := 0
	if j.pruner != nil {
		pruned = j.pruner.PruneLimiters(j.idle)
	}

	j.log.Info().
		Int64("suggestions_removed", removed).
		Int("limiters_pruned", pruned).
		Msg("Cleanup completed")
	return nil
}

// PortfolioLister lists the portfolios to refresh
type PortfolioLister interface {
	ListActivePortfolioIDs(ctx context.Context) ([]int64, error)
}

// RiskCalculator computes a portfolio's daily risk snapshot
type RiskCalculator interface {
	Calculate(ctx context.Context, portfolioID int64, force bool) (*domain.RiskMetrics, error)
}

// RiskRefreshJob makes sure every active portfolio has today's risk snapshot
type RiskRefreshJob struct {
	lister  PortfolioLister
	risk    RiskCalculator
	timeout time.Duration
	log     zerolog.Logger
}

// NewRiskRefreshJob creates the daily risk refresh job
func NewRiskRefreshJob(lister PortfolioLister, risk RiskCalculator, log zerolog.Logger) *RiskRefreshJob {
	return &RiskRefreshJob{
		lister:  lister,
		risk:    risk,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "risk_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RiskRefreshJob) Name() string {
	return "risk_refresh"
}

// Run computes missing same-day snapshots. Portfolios without priced
// holdings are skipped; other failures are counted and reported once.
func (j *RiskRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	ids, err := j.lister.ListActivePortfolioIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active portfolios: %w", err)
	}

	var refreshed, skipped, failed int
	for _, id := range ids {
		_, err := j.risk.Calculate(ctx, id, false)
		switch {
		case err == nil:
			refreshed++
		case errors.Is(err, domain.ErrInsufficientData):
			skipped++
		default:
			failed++
			j.log.Warn().Err(err).Int64("portfolio_id", id).Msg("Risk refresh failed")
		}
		if ctx.Err() != nil {
			break
		}
	}

	j.log.Info().
		Int("refreshed", refreshed).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Risk refresh completed")

	if failed > 0 {
		return fmt.Errorf("risk refresh failed for %d of %d portfolios", failed, len(ids))
	}
	return nil
}
