package domain

import (
	"context"
	"time"
)

// HoldingStore reads and mutates portfolio holdings
type HoldingStore interface {
	GetPortfolio(ctx context.Context, portfolioID int64) (*Portfolio, error)
	GetHoldings(ctx context.Context, portfolioID int64) ([]Holding, error)
	// FindHoldingsByTicker returns the holdings of ticker across all active portfolios.
	FindHoldingsByTicker(ctx context.Context, ticker string) ([]PortfolioHolding, error)
	UpdateHoldingSignal(ctx context.Context, holdingID int64, signal Signal, confidence float64, model string) error
	UpdatePortfolioTotals(ctx context.Context, portfolioID int64) error
	ListActivePortfolioIDs(ctx context.Context) ([]int64, error)
}

// SuggestionStore persists rebalancing suggestion sets
type SuggestionStore interface {
	ClearSuggestions(ctx context.Context, portfolioID int64) error
	SaveSuggestions(ctx context.Context, portfolioID int64, suggestions []RebalanceSuggestion) error
	// ReplaceSuggestions clears and inserts in one transaction.
	ReplaceSuggestions(ctx context.Context, portfolioID int64, suggestions []RebalanceSuggestion) error
	// GetSuggestions returns the suggestions not yet expired at now, by priority.
	GetSuggestions(ctx context.Context, portfolioID int64, now time.Time) ([]RebalanceSuggestion, error)
	DeleteExpiredSuggestions(ctx context.Context, now time.Time) (int64, error)
}

// RiskMetricsStore persists daily risk snapshots
type RiskMetricsStore interface {
	// SaveRiskMetrics upserts the record keyed by (portfolio, as-of day).
	SaveRiskMetrics(ctx context.Context, portfolioID int64, metrics *RiskMetrics) error
	// GetCachedRiskMetrics returns nil, nil when no record exists for the day.
	GetCachedRiskMetrics(ctx context.Context, portfolioID int64, asOf time.Time) (*RiskMetrics, error)
}

// PortfolioStore is the full persistence contract consumed by the pipeline
type PortfolioStore interface {
	HoldingStore
	SuggestionStore
	RiskMetricsStore
}

// NotificationSink delivers user notifications.
// Create returns the new notification id, or "" when nothing was created;
// failures are logged by the sink and never returned.
type NotificationSink interface {
	Create(ctx context.Context, n Notification) string
}

// AdminNotifier alerts operators about model drift
type AdminNotifier interface {
	NotifyDrift(ctx context.Context, report DriftReport) error
}

// RetrainingTrigger requests a model retraining run
type RetrainingTrigger interface {
	TriggerRetraining(ctx context.Context, modelID string, reason string) error
}

// BenchmarkProvider supplies benchmark daily returns for beta calculation
type BenchmarkProvider interface {
	BenchmarkReturns(ctx context.Context, n int) ([]float64, error)
}
