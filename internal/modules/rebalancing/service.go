package rebalancing

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/utils"
	"github.com/rs/zerolog"
)

// DefaultSuggestionTTL is how long a generated suggestion set stays valid
const DefaultSuggestionTTL = 7 * 24 * time.Hour

// Store is the persistence the rebalancing service needs
type Store interface {
	GetPortfolio(ctx context.Context, portfolioID int64) (*domain.Portfolio, error)
	ReplaceSuggestions(ctx context.Context, portfolioID int64, suggestions []domain.RebalanceSuggestion) error
	GetSuggestions(ctx context.Context, portfolioID int64, now time.Time) ([]domain.RebalanceSuggestion, error)
	ClearSuggestions(ctx context.Context, portfolioID int64) error
	DeleteExpiredSuggestions(ctx context.Context, now time.Time) (int64, error)
}

// Service caches engine output per portfolio.
//
// Regenerate and Invalidate on the same portfolio are serialized, and a
// regeneration swaps the whole suggestion set in one transaction, so readers
// never observe a mix of two runs.
type Service struct {
	engine *Engine
	store  Store
	locks  *utils.KeyedMutex[int64]
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a rebalancing service. ttl <= 0 uses DefaultSuggestionTTL.
func NewService(engine *Engine, store Store, ttl time.Duration, log zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultSuggestionTTL
	}
	return &Service{
		engine: engine,
		store:  store,
		locks:  utils.NewKeyedMutex[int64](),
		ttl:    ttl,
		now:    time.Now,
		log:    log.With().Str("service", "rebalancing").Logger(),
	}
}

// Regenerate recomputes and persists the portfolio's suggestion set
func (s *Service) Regenerate(ctx context.Context, portfolioID int64) (Result, error) {
	unlock, err := s.locks.LockContext(ctx, portfolioID)
	if err != nil {
		return Result{}, fmt.Errorf("waiting for portfolio %d: %w", portfolioID, err)
	}
	defer unlock()
	defer utils.OperationTimer("rebalancing.regenerate", s.log)()

	portfolio, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load portfolio %d: %w", portfolioID, err)
	}

	result := s.engine.Generate(portfolio.Holdings, portfolio.TotalValue)

	created := s.now().UTC()
	for i := range result.Suggestions {
		result.Suggestions[i].CreatedAt = created
		result.Suggestions[i].ExpiresAt = created.Add(s.ttl)
	}

	if err := s.store.ReplaceSuggestions(ctx, portfolioID, result.Suggestions); err != nil {
		return Result{}, fmt.Errorf("failed to save suggestions for portfolio %d: %w", portfolioID, err)
	}

	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Int("suggestions", len(result.Suggestions)).
		Msg(result.Message)

	return result, nil
}

// Suggestions returns the cached unexpired set, regenerating it when empty
func (s *Service) Suggestions(ctx context.Context, portfolioID int64) ([]domain.RebalanceSuggestion, error) {
	cached, err := s.store.GetSuggestions(ctx, portfolioID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestions for portfolio %d: %w", portfolioID, err)
	}
	if len(cached) > 0 {
		return cached, nil
	}

	result, err := s.Regenerate(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return result.Suggestions, nil
}

// Invalidate drops the cached suggestions so the next read recomputes them
func (s *Service) Invalidate(ctx context.Context, portfolioID int64) error {
	unlock, err := s.locks.LockContext(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("waiting for portfolio %d: %w", portfolioID, err)
	}
	defer unlock()

	if err := s.store.ClearSuggestions(ctx, portfolioID); err != nil {
		return fmt.Errorf("failed to clear suggestions for portfolio %d: %w", portfolioID, err)
	}
	return nil
}

// PurgeExpired deletes every expired suggestion
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredSuggestions(ctx, s.now())
}
