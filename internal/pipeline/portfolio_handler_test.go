package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/modules/rebalancing"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRisk struct {
	mu     sync.Mutex
	forced []bool
	err    error
}

func (s *stubRisk) Calculate(ctx context.Context, portfolioID int64, force bool) (*domain.RiskMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = append(s.forced, force)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.RiskMetrics{PortfolioID: portfolioID}, nil
}

type stubRebalancer struct {
	mu     sync.Mutex
	calls  int
	result rebalancing.Result
	err    error
	panic  bool
}

func (s *stubRebalancer) Regenerate(ctx context.Context, portfolioID int64) (rebalancing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panic {
		panic("engine exploded")
	}
	return s.result, s.err
}

type portfolioFixture struct {
	store      *testingutil.MockPortfolioStore
	risk       *stubRisk
	rebalancer *stubRebalancer
	sink       *testingutil.MockNotificationSink
	logs       *testingutil.LogCapture
	handler    *PortfolioHandler
}

func newPortfolioFixture(t *testing.T) *portfolioFixture {
	t.Helper()
	logs, log := testingutil.NewLogCapture()

	store := testingutil.NewMockPortfolioStore()
	store.AddPortfolio(domain.Portfolio{ID: 5, UserID: "alice", Active: true, Holdings: []domain.Holding{
		{ID: 1, Ticker: "LOSS", Shares: 10, AvgCost: 100, CurrentPrice: 90},
		{ID: 2, Ticker: "GAIN", Shares: 10, AvgCost: 100, CurrentPrice: 115},
		{ID: 3, Ticker: "FLAT", Shares: 10, AvgCost: 100, CurrentPrice: 105},
		{ID: 4, Ticker: "DEEP", Shares: 10, AvgCost: 100, CurrentPrice: 50},
		{ID: 5, Ticker: "NOBASIS", Shares: 10, CurrentPrice: 50},
	}})

	rebalancer := &stubRebalancer{result: rebalancing.Result{
		Status: rebalancing.StatusOK,
		Suggestions: []domain.RebalanceSuggestion{
			{Ticker: "DEEP", Action: domain.ActionSell, Priority: 1},
			{Ticker: "GAIN", Action: domain.ActionTrim, Priority: 2},
		},
	}}
	risk := &stubRisk{}
	sink := testingutil.NewMockNotificationSink()

	return &portfolioFixture{
		store:      store,
		risk:       risk,
		rebalancer: rebalancer,
		sink:       sink,
		logs:       logs,
		handler:    NewPortfolioHandler(store, risk, rebalancer, sink, log),
	}
}

func portfolioEvent(id int64, userID, action string, holdings *int) *events.Event {
	return events.NewEvent("upload_service", &events.PortfolioChangedData{
		PortfolioID: id, UserID: userID, Action: action, HoldingsCount: holdings,
	})
}

func intPtr(v int) *int { return &v }

func types(ns []domain.Notification) []domain.NotificationType {
	out := make([]domain.NotificationType, len(ns))
	for i, n := range ns {
		out[i] = n.Type
	}
	return out
}

func TestPortfolioHandler_RunsAllStages(t *testing.T) {
	f := newPortfolioFixture(t)

	require.NoError(t, f.handler.Handle(context.Background(), portfolioEvent(5, "alice", events.ActionUpload, intPtr(5))))

	assert.Equal(t, []bool{true}, f.risk.forced, "risk is recalculated with force")
	assert.Equal(t, 1, f.rebalancer.calls)

	got := f.sink.Notifications()
	assert.Equal(t, []domain.NotificationType{
		domain.NotificationRebalancingSuggested,
		domain.NotificationStopLoss,
		domain.NotificationTargetPrice,
		domain.NotificationStopLoss,
		domain.NotificationUploadComplete,
	}, types(got))
	for _, n := range got {
		assert.Equal(t, "alice", n.UserID)
	}

	assert.Equal(t, 2, got[0].Data["count"])
	assert.Equal(t, "2 rebalancing suggestions available for your portfolio.", got[0].Message)
	assert.Equal(t, "LOSS", got[1].Data["ticker"])
	assert.Equal(t, domain.NotificationPriorityHigh, got[1].Priority)
	assert.Equal(t, "GAIN", got[2].Data["ticker"])
	assert.Equal(t, "DEEP", got[3].Data["ticker"])
	assert.Equal(t, "Your portfolio upload has been processed: 5 holdings imported.", got[4].Message)

	assert.Empty(t, f.logs.Level(t, "error"))
}

func TestPortfolioHandler_MissingPortfolioID(t *testing.T) {
	f := newPortfolioFixture(t)

	require.NoError(t, f.handler.Handle(context.Background(), portfolioEvent(0, "alice", events.ActionUpload, nil)))

	assert.Empty(t, f.risk.forced)
	assert.Zero(t, f.rebalancer.calls)
	assert.Empty(t, f.sink.Notifications())
	assert.Len(t, f.logs.Level(t, "warn"), 1)
}

func TestPortfolioHandler_NoUserSuppressesNotificationsOnly(t *testing.T) {
	f := newPortfolioFixture(t)

	require.NoError(t, f.handler.Handle(context.Background(), portfolioEvent(5, "", events.ActionAnalyze, nil)))

	assert.Len(t, f.risk.forced, 1)
	assert.Equal(t, 1, f.rebalancer.calls)
	assert.Equal(t, []int64{5}, f.store.Calls("GetPortfolio"), "alert scan still reads holdings")
	assert.Empty(t, f.sink.Notifications())
}

func TestPortfolioHandler_UsesEventUserAsFallback(t *testing.T) {
	f := newPortfolioFixture(t)
	event := events.NewEvent("analysis_service",
		&events.PortfolioChangedData{PortfolioID: 5, Action: events.ActionAnalyze},
		events.WithUserID("alice"))

	require.NoError(t, f.handler.Handle(context.Background(), event))

	done := f.sink.ByType(domain.NotificationAnalysisComplete)
	require.Len(t, done, 1)
	assert.Equal(t, "alice", done[0].UserID)
}

func TestPortfolioHandler_StageFailuresAreIsolated(t *testing.T) {
	f := newPortfolioFixture(t)
	f.risk.err = errors.New("database is locked")
	f.rebalancer.panic = true

	require.NoError(t, f.handler.Handle(context.Background(), portfolioEvent(5, "alice", "sync", nil)))

	assert.Equal(t, []domain.NotificationType{
		domain.NotificationStopLoss,
		domain.NotificationTargetPrice,
		domain.NotificationStopLoss,
		domain.NotificationPortfolioUpdated,
	}, types(f.sink.Notifications()))

	errs := f.logs.Level(t, "error")
	require.Len(t, errs, 2)
	assert.Equal(t, "risk", errs[0]["stage"])
	assert.Equal(t, "rebalancing", errs[1]["stage"])
	assert.Equal(t, "panic: engine exploded", errs[1]["error"])
	for _, e := range errs {
		assert.EqualValues(t, 5, e["portfolio_id"])
	}
}

func TestPortfolioHandler_InsufficientDataIsNotAFailure(t *testing.T) {
	f := newPortfolioFixture(t)
	f.risk.err = fmt.Errorf("%w: no priced holdings", domain.ErrInsufficientData)
	f.rebalancer.result = rebalancing.Result{Status: rebalancing.StatusOK}

	require.NoError(t, f.handler.Handle(context.Background(), portfolioEvent(5, "alice", events.ActionUpload, nil)))

	assert.Empty(t, f.logs.Level(t, "error"))
	assert.Empty(t, f.sink.ByType(domain.NotificationRebalancingSuggested), "no suggestions, no notification")
	upload := f.sink.ByType(domain.NotificationUploadComplete)
	require.Len(t, upload, 1)
	assert.Equal(t, "Your portfolio upload has been processed.", upload[0].Message)
}

func TestPortfolioHandler_AlertScanFailure(t *testing.T) {
	f := newPortfolioFixture(t)
	f.store.SetError("GetPortfolio", errors.New("no such table: holdings"))

	require.NoError(t, f.handler.Handle(context.Background(), portfolioEvent(5, "alice", events.ActionAnalyze, nil)))

	errs := f.logs.Level(t, "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "alerts", errs[0]["stage"])
	assert.Len(t, f.sink.ByType(domain.NotificationAnalysisComplete), 1)
}
