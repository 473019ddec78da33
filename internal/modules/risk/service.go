package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/utils"
	"github.com/rs/zerolog"
)

// Store is the persistence the risk service needs
type Store interface {
	GetPortfolio(ctx context.Context, portfolioID int64) (*domain.Portfolio, error)
	SaveRiskMetrics(ctx context.Context, portfolioID int64, metrics *domain.RiskMetrics) error
	GetCachedRiskMetrics(ctx context.Context, portfolioID int64, asOf time.Time) (*domain.RiskMetrics, error)
}

// Service wraps the engine with the per-day snapshot cache
type Service struct {
	engine    *Engine
	store     Store
	benchmark domain.BenchmarkProvider
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a risk service. benchmark may be nil.
func NewService(engine *Engine, store Store, benchmark domain.BenchmarkProvider, log zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		store:     store,
		benchmark: benchmark,
		now:       time.Now,
		log:       log.With().Str("service", "risk").Logger(),
	}
}

// Calculate returns today's metrics for the portfolio. Unforced calls return
// an existing same-day snapshot unchanged; forced calls always recompute and
// overwrite it.
func (s *Service) Calculate(ctx context.Context, portfolioID int64, force bool) (*domain.RiskMetrics, error) {
	today := domain.AsOfDate(s.now())

	if !force {
		cached, err := s.store.GetCachedRiskMetrics(ctx, portfolioID, today)
		if err != nil {
			return nil, fmt.Errorf("failed to read cached risk metrics for portfolio %d: %w", portfolioID, err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	defer utils.OperationTimer("risk.calculate", s.log)()

	portfolio, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %d: %w", portfolioID, err)
	}

	metrics, err := s.engine.Calculate(portfolio.Holdings, portfolio.TotalValue, s.benchmarkReturns(ctx, len(portfolio.Holdings)))
	if err != nil {
		return nil, err
	}
	metrics.PortfolioID = portfolioID
	metrics.AsOf = today

	if err := s.store.SaveRiskMetrics(ctx, portfolioID, metrics); err != nil {
		return nil, fmt.Errorf("failed to save risk metrics for portfolio %d: %w", portfolioID, err)
	}

	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Int("holdings", metrics.HoldingsCount).
		Float64("herfindahl", metrics.HerfindahlIndex).
		Msg("Risk metrics calculated")

	return metrics, nil
}

func (s *Service) benchmarkReturns(ctx context.Context, n int) []float64 {
	if s.benchmark == nil || n < 2 {
		return nil
	}
	returns, err := s.benchmark.BenchmarkReturns(ctx, n)
	if err != nil {
		s.log.Warn().Err(err).Msg("Benchmark returns unavailable; beta left undefined")
		return nil
	}
	return returns
}
