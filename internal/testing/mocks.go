package testing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/pulse/internal/domain"
)

// MockPortfolioStore is an in-memory, thread-safe domain.PortfolioStore
type MockPortfolioStore struct {
	mu          sync.RWMutex
	portfolios  map[int64]*domain.Portfolio
	suggestions map[int64][]domain.RebalanceSuggestion
	risk        map[string]*domain.RiskMetrics
	errs        map[string]error
	holdingErrs map[int64]error
	calls       map[string][]int64
}

// NewMockPortfolioStore creates an empty mock store
func NewMockPortfolioStore() *MockPortfolioStore {
	return &MockPortfolioStore{
		portfolios:  make(map[int64]*domain.Portfolio),
		suggestions: make(map[int64][]domain.RebalanceSuggestion),
		risk:        make(map[string]*domain.RiskMetrics),
		errs:        make(map[string]error),
		holdingErrs: make(map[int64]error),
		calls:       make(map[string][]int64),
	}
}

// AddPortfolio stores a copy of p; holdings inherit its id
func (m *MockPortfolioStore) AddPortfolio(p domain.Portfolio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	cp.Holdings = make([]domain.Holding, len(p.Holdings))
	for i, h := range p.Holdings {
		h.PortfolioID = p.ID
		cp.Holdings[i] = h
	}
	m.portfolios[p.ID] = &cp
}

// SetError makes every call of method return err; nil clears it
func (m *MockPortfolioStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

// FailHoldingUpdate makes UpdateHoldingSignal fail for one holding
func (m *MockPortfolioStore) FailHoldingUpdate(holdingID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdingErrs[holdingID] = err
}

// Calls returns the ids passed to method, in call order
func (m *MockPortfolioStore) Calls(method string) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.calls[method]...)
}

// Holding returns the stored holding by id
func (m *MockPortfolioStore) Holding(holdingID int64) (domain.Holding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.portfolios {
		for _, h := range p.Holdings {
			if h.ID == holdingID {
				return h, true
			}
		}
	}
	return domain.Holding{}, false
}

// record must be called with the write lock held
func (m *MockPortfolioStore) record(method string, id int64) error {
	m.calls[method] = append(m.calls[method], id)
	return m.errs[method]
}

func (m *MockPortfolioStore) GetPortfolio(ctx context.Context, portfolioID int64) (*domain.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetPortfolio", portfolioID); err != nil {
		return nil, err
	}
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return nil, fmt.Errorf("%w: portfolio %d", domain.ErrNotFound, portfolioID)
	}
	cp := *p
	cp.Holdings = append([]domain.Holding(nil), p.Holdings...)
	cp.TotalValue = domain.MarketValue(cp.Cash, cp.Holdings)
	return &cp, nil
}

func (m *MockPortfolioStore) GetHoldings(ctx context.Context, portfolioID int64) ([]domain.Holding, error) {
	p, err := m.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return p.Holdings, nil
}

func (m *MockPortfolioStore) FindHoldingsByTicker(ctx context.Context, ticker string) ([]domain.PortfolioHolding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("FindHoldingsByTicker", 0); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(m.portfolios))
	for id := range m.portfolios {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.PortfolioHolding
	for _, id := range ids {
		p := m.portfolios[id]
		if !p.Active {
			continue
		}
		for _, h := range p.Holdings {
			if h.Ticker == ticker {
				out = append(out, domain.PortfolioHolding{Holding: h, UserID: p.UserID})
			}
		}
	}
	return out, nil
}

func (m *MockPortfolioStore) UpdateHoldingSignal(ctx context.Context, holdingID int64, signal domain.Signal, confidence float64, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateHoldingSignal", holdingID); err != nil {
		return err
	}
	if err := m.holdingErrs[holdingID]; err != nil {
		return err
	}
	for _, p := range m.portfolios {
		for i := range p.Holdings {
			if p.Holdings[i].ID == holdingID {
				p.Holdings[i].CurrentSignal = signal
				p.Holdings[i].SignalConfidence = confidence
				p.Holdings[i].SignalModel = model
				return nil
			}
		}
	}
	return fmt.Errorf("%w: holding %d", domain.ErrNotFound, holdingID)
}

func (m *MockPortfolioStore) UpdatePortfolioTotals(ctx context.Context, portfolioID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdatePortfolioTotals", portfolioID); err != nil {
		return err
	}
	p, ok := m.portfolios[portfolioID]
	if !ok {
		return fmt.Errorf("%w: portfolio %d", domain.ErrNotFound, portfolioID)
	}
	p.TotalValue = domain.MarketValue(p.Cash, p.Holdings)
	return nil
}

func (m *MockPortfolioStore) ListActivePortfolioIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListActivePortfolioIDs", 0); err != nil {
		return nil, err
	}
	var ids []int64
	for id, p := range m.portfolios {
		if p.Active {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MockPortfolioStore) ClearSuggestions(ctx context.Context, portfolioID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ClearSuggestions", portfolioID); err != nil {
		return err
	}
	delete(m.suggestions, portfolioID)
	return nil
}

func (m *MockPortfolioStore) SaveSuggestions(ctx context.Context, portfolioID int64, suggestions []domain.RebalanceSuggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveSuggestions", portfolioID); err != nil {
		return err
	}
	m.suggestions[portfolioID] = append(m.suggestions[portfolioID], suggestions...)
	return nil
}

func (m *MockPortfolioStore) ReplaceSuggestions(ctx context.Context, portfolioID int64, suggestions []domain.RebalanceSuggestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ReplaceSuggestions", portfolioID); err != nil {
		return err
	}
	m.suggestions[portfolioID] = append([]domain.RebalanceSuggestion(nil), suggestions...)
	return nil
}

func (m *MockPortfolioStore) GetSuggestions(ctx context.Context, portfolioID int64, now time.Time) ([]domain.RebalanceSuggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetSuggestions", portfolioID); err != nil {
		return nil, err
	}
	var out []domain.RebalanceSuggestion
	for _, s := range m.suggestions[portfolioID] {
		if s.ExpiresAt.After(now) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *MockPortfolioStore) DeleteExpiredSuggestions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteExpiredSuggestions", 0); err != nil {
		return 0, err
	}
	var removed int64
	for id, list := range m.suggestions {
		kept := list[:0]
		for _, s := range list {
			if s.ExpiresAt.After(now) {
				kept = append(kept, s)
			} else {
				removed++
			}
		}
		m.suggestions[id] = kept
	}
	return removed, nil
}

func riskKey(portfolioID int64, asOf time.Time) string {
	return fmt.Sprintf("%d/%s", portfolioID, domain.AsOfDate(asOf).Format("2006-01-02"))
}

func (m *MockPortfolioStore) SaveRiskMetrics(ctx context.Context, portfolioID int64, metrics *domain.RiskMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SaveRiskMetrics", portfolioID); err != nil {
		return err
	}
	cp := *metrics
	m.risk[riskKey(portfolioID, metrics.AsOf)] = &cp
	return nil
}

func (m *MockPortfolioStore) GetCachedRiskMetrics(ctx context.Context, portfolioID int64, asOf time.Time) (*domain.RiskMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetCachedRiskMetrics", portfolioID); err != nil {
		return nil, err
	}
	cached, ok := m.risk[riskKey(portfolioID, asOf)]
	if !ok {
		return nil, nil
	}
	cp := *cached
	return &cp, nil
}

// MockNotificationSink records created notifications
type MockNotificationSink struct {
	mu            sync.Mutex
	notifications []domain.Notification
	fail          bool
}

// NewMockNotificationSink creates a new mock sink
func NewMockNotificationSink() *MockNotificationSink {
	return &MockNotificationSink{}
}

// SetFail makes Create return "" without recording
func (m *MockNotificationSink) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Create records n and returns a sequential id
func (m *MockNotificationSink) Create(ctx context.Context, n domain.Notification) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return ""
	}
	n.ID = fmt.Sprintf("n-%d", len(m.notifications)+1)
	m.notifications = append(m.notifications, n)
	return n.ID
}

// Notifications returns every recorded notification
func (m *MockNotificationSink) Notifications() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.notifications...)
}

// ByType returns the recorded notifications of one type
func (m *MockNotificationSink) ByType(t domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range m.Notifications() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// MockAdminNotifier records drift reports
type MockAdminNotifier struct {
	mu      sync.Mutex
	reports []domain.DriftReport
	err     error
}

// SetError sets the error to return
func (m *MockAdminNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockAdminNotifier) NotifyDrift(ctx context.Context, report domain.DriftReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return m.err
}

// Reports returns the recorded reports
func (m *MockAdminNotifier) Reports() []domain.DriftReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DriftReport(nil), m.reports...)
}

// RetrainRequest is one recorded TriggerRetraining call
type RetrainRequest struct {
	ModelID string
	Reason  string
}

// MockRetrainingTrigger records retraining requests
type MockRetrainingTrigger struct {
	mu       sync.Mutex
	requests []RetrainRequest
}

func (m *MockRetrainingTrigger) TriggerRetraining(ctx context.Context, modelID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, RetrainRequest{ModelID: modelID, Reason: reason})
	return nil
}

// Requests returns the recorded requests
func (m *MockRetrainingTrigger) Requests() []RetrainRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RetrainRequest(nil), m.requests...)
}

// MockBenchmarkProvider returns fixed benchmark returns
type MockBenchmarkProvider struct {
	Returns []float64
	Err     error
}

func (m *MockBenchmarkProvider) BenchmarkReturns(ctx context.Context, n int) ([]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Returns, nil
}

var (
	_ domain.PortfolioStore    = (*MockPortfolioStore)(nil)
	_ domain.NotificationSink  = (*MockNotificationSink)(nil)
	_ domain.AdminNotifier     = (*MockAdminNotifier)(nil)
	_ domain.RetrainingTrigger = (*MockRetrainingTrigger)(nil)
	_ domain.BenchmarkProvider = (*MockBenchmarkProvider)(nil)
)
