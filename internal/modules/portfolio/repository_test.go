package portfolio

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/domain"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db := testingutil.NewTestDB(t, database.NamePortfolio)
	return NewRepository(db, zerolog.Nop())
}

func seedPortfolio(t *testing.T, repo *Repository, userID string, cash float64, holdings ...domain.Holding) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := repo.CreatePortfolio(ctx, userID, "main", cash)
	require.NoError(t, err)

	for _, h := range holdings {
		h.PortfolioID = id
		_, err := repo.UpsertHolding(ctx, h)
		require.NoError(t, err)
	}
	require.NoError(t, repo.UpdatePortfolioTotals(ctx, id))
	return id
}

func TestRepository_PortfolioRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := seedPortfolio(t, repo, "user-1", 1000,
		domain.Holding{Ticker: "msft", Shares: 10, AvgCost: 300, CurrentPrice: 400},
		domain.Holding{Ticker: "AAPL", Shares: 20, AvgCost: 150, CurrentPrice: 200},
	)

	p, err := repo.GetPortfolio(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.True(t, p.Active)
	assert.InDelta(t, 1000+4000+4000, p.TotalValue, 1e-9)
	require.Len(t, p.Holdings, 2)
	assert.Equal(t, "AAPL", p.Holdings[0].Ticker)
	assert.Equal(t, "MSFT", p.Holdings[1].Ticker, "tickers are normalized")
	assert.Empty(t, p.Holdings[0].CurrentSignal)
}

func TestRepository_TotalValueFollowsUpsertedHoldings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.CreatePortfolio(ctx, "user-1", "main", 10000)
	require.NoError(t, err)
	_, err = repo.UpsertHolding(ctx, domain.Holding{PortfolioID: id, Ticker: "AAPL", Shares: 900, AvgCost: 100, CurrentPrice: 100})
	require.NoError(t, err)

	p, err := repo.GetPortfolio(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 100000.0, p.TotalValue, 1e-9)

	_, err = repo.UpsertHolding(ctx, domain.Holding{PortfolioID: id, Ticker: "AAPL", Shares: 900, AvgCost: 100, CurrentPrice: 50})
	require.NoError(t, err)

	p, err = repo.GetPortfolio(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 55000.0, p.TotalValue, 1e-9)
}

func TestRepository_GetPortfolioNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetPortfolio(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.UpdatePortfolioTotals(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_UpsertHoldingKeepsSignal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id := seedPortfolio(t, repo, "user-1", 0)
	hid, err := repo.UpsertHolding(ctx, domain.Holding{PortfolioID: id, Ticker: "AAPL", Shares: 5, CurrentPrice: 100})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateHoldingSignal(ctx, hid, domain.SignalBuy, 72, "xgb"))

	again, err := repo.UpsertHolding(ctx, domain.Holding{PortfolioID: id, Ticker: "AAPL", Shares: 8, CurrentPrice: 110})
	require.NoError(t, err)
	assert.Equal(t, hid, again)

	holdings, err := repo.GetHoldings(ctx, id)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, 8.0, holdings[0].Shares)
	assert.Equal(t, domain.SignalBuy, holdings[0].CurrentSignal)
	assert.Equal(t, 72.0, holdings[0].SignalConfidence)
	assert.Equal(t, "xgb", holdings[0].SignalModel)
}

func TestRepository_UpdateHoldingSignalUnknownHolding(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.UpdateHoldingSignal(context.Background(), 12345, domain.SignalHold, 50, "m")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_FindHoldingsByTickerSkipsInactive(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	active := seedPortfolio(t, repo, "user-1", 0, domain.Holding{Ticker: "NVDA", Shares: 1, CurrentPrice: 100})
	inactive := seedPortfolio(t, repo, "user-2", 0, domain.Holding{Ticker: "NVDA", Shares: 1, CurrentPrice: 100})
	seedPortfolio(t, repo, "user-3", 0, domain.Holding{Ticker: "AMD", Shares: 1, CurrentPrice: 100})
	require.NoError(t, repo.SetPortfolioActive(ctx, inactive, false))

	found, err := repo.FindHoldingsByTicker(ctx, "nvda")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, active, found[0].PortfolioID)
	assert.Equal(t, "user-1", found[0].UserID)

	ids, err := repo.ListActivePortfolioIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, inactive)
	assert.Len(t, ids, 2)
}

func suggestion(ticker string, priority int, created time.Time, ttl time.Duration) domain.RebalanceSuggestion {
	return domain.RebalanceSuggestion{
		Ticker:            ticker,
		Action:            domain.ActionTrim,
		SuggestedQuantity: 2,
		SuggestedValue:    2000,
		Reason:            "test",
		CurrentWeightPct:  20,
		TargetWeightPct:   12,
		ConfidenceScore:   80,
		Priority:          priority,
		CreatedAt:         created,
		ExpiresAt:         created.Add(ttl),
	}
}

func TestRepository_ReplaceSuggestions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedPortfolio(t, repo, "user-1", 0)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.SaveSuggestions(ctx, id, []domain.RebalanceSuggestion{
		suggestion("OLD", 1, now, time.Hour),
	}))
	require.NoError(t, repo.ReplaceSuggestions(ctx, id, []domain.RebalanceSuggestion{
		suggestion("B", 2, now, time.Hour),
		suggestion("A", 1, now, time.Hour),
	}))

	got, err := repo.GetSuggestions(ctx, id, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Ticker)
	assert.Equal(t, "B", got[1].Ticker)
	assert.Equal(t, now.Add(time.Hour), got[0].ExpiresAt)

	require.NoError(t, repo.ClearSuggestions(ctx, id))
	got, err = repo.GetSuggestions(ctx, id, now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_ReplaceSuggestionsFailureWrappedOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedPortfolio(t, repo, "user-1", 0)
	now := time.Now().UTC()

	_, err := repo.db.Conn().Exec(`CREATE TRIGGER reject_suggestions BEFORE INSERT ON rebalancing_suggestions
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	for name, write := range map[string]func() error{
		"replace": func() error {
			return repo.ReplaceSuggestions(ctx, id, []domain.RebalanceSuggestion{suggestion("A", 1, now, time.Hour)})
		},
		"save": func() error {
			return repo.SaveSuggestions(ctx, id, []domain.RebalanceSuggestion{suggestion("A", 1, now, time.Hour)})
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := write()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStore)
			assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrStore.Error()), err.Error())
			assert.Contains(t, err.Error(), "insert suggestion A")
		})
	}
}

func TestRepository_ConcurrentReplaceNeverMixesSets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedPortfolio(t, repo, "user-1", 0)
	now := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set := []domain.RebalanceSuggestion{
				suggestion(string(rune('A'+i)), 1, now, time.Hour),
				suggestion(string(rune('A'+i)), 2, now, time.Hour),
			}
			assert.NoError(t, repo.ReplaceSuggestions(ctx, id, set))
		}(i)
	}
	wg.Wait()

	got, err := repo.GetSuggestions(ctx, id, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0].Ticker, got[1].Ticker)
}

func TestRepository_ExpiredSuggestions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedPortfolio(t, repo, "user-1", 0)
	now := time.Now().UTC()

	require.NoError(t, repo.SaveSuggestions(ctx, id, []domain.RebalanceSuggestion{
		suggestion("STALE", 1, now.Add(-8*24*time.Hour), 7*24*time.Hour),
		suggestion("FRESH", 2, now, 7*24*time.Hour),
	}))

	got, err := repo.GetSuggestions(ctx, id, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FRESH", got[0].Ticker)

	deleted, err := repo.DeleteExpiredSuggestions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestRepository_RiskMetricsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedPortfolio(t, repo, "user-1", 0)

	asOf := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	vol := 18.5

	cached, err := repo.GetCachedRiskMetrics(ctx, id, asOf)
	require.NoError(t, err)
	assert.Nil(t, cached)

	require.NoError(t, repo.SaveRiskMetrics(ctx, id, &domain.RiskMetrics{
		PortfolioID:        id,
		AsOf:               asOf,
		Volatility:         &vol,
		HerfindahlIndex:    0.3,
		SignalDistribution: map[string]int{"BUY": 2, "UNKNOWN": 1},
		HoldingsCount:      3,
		TotalValue:         10000,
	}))
	require.NoError(t, repo.SaveRiskMetrics(ctx, id, &domain.RiskMetrics{
		PortfolioID:        id,
		AsOf:               asOf.Add(time.Hour),
		HerfindahlIndex:    0.4,
		SignalDistribution: map[string]int{"SELL": 1},
		HoldingsCount:      1,
	}))

	cached, err = repo.GetCachedRiskMetrics(ctx, id, asOf)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 0.4, cached.HerfindahlIndex, "same-day save overwrites")
	assert.Nil(t, cached.Volatility)
	assert.Equal(t, map[string]int{"SELL": 1}, cached.SignalDistribution)
	assert.Equal(t, domain.AsOfDate(asOf), cached.AsOf)

	other, err := repo.GetCachedRiskMetrics(ctx, id, asOf.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, other)
}
