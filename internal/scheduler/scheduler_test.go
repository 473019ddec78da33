package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aristath/pulse/internal/domain"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	run  func() error
}

func (j funcJob) Name() string { return j.name }
func (j funcJob) Run() error   { return j.run() }

func TestScheduler_RunNowRecoversPanic(t *testing.T) {
	s := New(zerolog.Nop())

	err := s.RunNow(funcJob{name: "boom", run: func() error { panic("bad state") }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad state")

	assert.NoError(t, s.RunNow(funcJob{name: "ok", run: func() error { return nil }}))
}

func TestScheduler_AddJobRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", funcJob{name: "x", run: func() error { return nil }})
	assert.Error(t, err)
	assert.Empty(t, s.Jobs())
}

func TestScheduler_RunsRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	ran := make(chan struct{}, 1)

	require.NoError(t, s.AddJob("@every 1s", funcJob{name: "tick", run: func() error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}}))
	require.NoError(t, s.AddJob("0 30 6 * * *", funcJob{name: "daily", run: func() error { return nil }}))

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "daily", jobs[0].Name)
	assert.Equal(t, "tick", jobs[1].Name)
	assert.False(t, jobs[0].Next.IsZero())
}

type stubPurger struct {
	removed int64
	err     error
}

func (s *stubPurger) PurgeExpired(ctx context.Context) (int64, error) { return s.removed, s.err }

type stubPruner struct{ idle time.Duration }

func (s *stubPruner) PruneLimiters(idle time.Duration) int {
	s.idle = idle
	return 2
}

func TestSuggestionCleanupJob(t *testing.T) {
	logs, log := testingutil.NewLogCapture()
	pruner := &stubPruner{}

	job := NewSuggestionCleanupJob(&stubPurger{removed: 4}, pruner, log)
	require.NoError(t, job.Run())
	assert.Equal(t, time.Hour, pruner.idle)

	infos := logs.Level(t, "info")
	require.Len(t, infos, 1)
	assert.EqualValues(t, 4, infos[0]["suggestions_removed"])
	assert.EqualValues(t, 2, infos[0]["limiters_pruned"])

	failing := NewSuggestionCleanupJob(&stubPurger{err: errors.New("locked")}, nil, log)
	assert.Error(t, failing.Run())
}

type stubRisk struct {
	mu     sync.Mutex
	forced []bool
	errs   map[int64]error
}

func (s *stubRisk) Calculate(ctx context.Context, portfolioID int64, force bool) (*domain.RiskMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = append(s.forced, force)
	if err := s.errs[portfolioID]; err != nil {
		return nil, err
	}
	return &domain.RiskMetrics{PortfolioID: portfolioID}, nil
}

func TestRiskRefreshJob(t *testing.T) {
	store := testingutil.NewMockPortfolioStore()
	for id := int64(1); id <= 4; id++ {
		store.AddPortfolio(domain.Portfolio{ID: id, UserID: "u", Active: id != 4})
	}

	risk := &stubRisk{errs: map[int64]error{
		2: fmt.Errorf("%w: no priced holdings", domain.ErrInsufficientData),
	}}
	job := NewRiskRefreshJob(store, risk, zerolog.Nop())
	require.NoError(t, job.Run())
	assert.Equal(t, []bool{false, false, false}, risk.forced, "refresh uses the same-day cache")

	risk.errs[3] = errors.New("database is locked")
	assert.Error(t, job.Run())
}
