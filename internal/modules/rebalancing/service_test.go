package rebalancing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/pulse/internal/database"
	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/modules/portfolio"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/aristath/pulse/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *portfolio.Repository, int64) {
	t.Helper()
	ctx := context.Background()

	log := logger.New(logger.Config{Level: "error", Pretty: false})
	repo := portfolio.NewRepository(testingutil.NewTestDB(t, database.NamePortfolio), log)

	id, err := repo.CreatePortfolio(ctx, "user-1", "main", 80000)
	require.NoError(t, err)
	hid, err := repo.UpsertHolding(ctx, domain.Holding{PortfolioID: id, Ticker: "AAPL", Shares: 100, AvgCost: 150, CurrentPrice: 200})
	require.NoError(t, err)
	require.NoError(t, repo.UpdateHoldingSignal(ctx, hid, domain.SignalHold, 60, "m"))
	require.NoError(t, repo.UpdatePortfolioTotals(ctx, id))

	return NewService(NewEngine(), repo, time.Hour, log), repo, id
}

func TestService_RegeneratePersistsStampedSet(t *testing.T) {
	svc, repo, id := setupService(t)
	ctx := context.Background()
	fixed := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	result, err := svc.Regenerate(ctx, id)
	require.NoError(t, err)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, fixed, result.Suggestions[0].CreatedAt)
	assert.Equal(t, fixed.Add(time.Hour), result.Suggestions[0].ExpiresAt)

	stored, err := repo.GetSuggestions(ctx, id, fixed)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ActionTrim, stored[0].Action)

	expired, err := repo.GetSuggestions(ctx, id, fixed.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestService_SuggestionsUsesCacheThenRecomputes(t *testing.T) {
	svc, repo, id := setupService(t)
	ctx := context.Background()

	first, err := svc.Suggestions(ctx, id)
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, svc.Invalidate(ctx, id))
	cached, err := repo.GetSuggestions(ctx, id, time.Now())
	require.NoError(t, err)
	assert.Empty(t, cached)

	again, err := svc.Suggestions(ctx, id)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, first[0].Ticker, again[0].Ticker)
}

func TestService_RegenerateUnknownPortfolio(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Regenerate(context.Background(), 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_ConcurrentRegenerateAndInvalidate(t *testing.T) {
	svc, repo, id := setupService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Regenerate(ctx, id)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Invalidate(ctx, id))
		}()
	}
	wg.Wait()

	stored, err := repo.GetSuggestions(ctx, id, time.Now())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(stored), 1, "a set is either cleared or one whole run")
	assert.Equal(t, 0, svc.locks.Len())
}

func TestService_PurgeExpired(t *testing.T) {
	svc, _, id := setupService(t)
	ctx := context.Background()

	_, err := svc.Regenerate(ctx, id)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestService_RegenerateGivesUpWhenContextDone(t *testing.T) {
	svc, _, id := setupService(t)

	unlock := svc.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Regenerate(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, svc.Invalidate(ctx, id), context.DeadlineExceeded)
}
