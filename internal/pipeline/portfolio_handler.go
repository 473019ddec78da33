package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/modules/rebalancing"
	"github.com/rs/zerolog"
)

// Unrealized P/L bands of the alert scan, in percent.
const (
	StopLossPct    = -10.0
	TargetPricePct = 15.0
)

// RiskCalculator recomputes a portfolio's risk snapshot
type RiskCalculator interface {
	Calculate(ctx context.Context, portfolioID int64, force bool) (*domain.RiskMetrics, error)
}

// SuggestionGenerator regenerates a portfolio's rebalancing suggestions
type SuggestionGenerator interface {
	Regenerate(ctx context.Context, portfolioID int64) (rebalancing.Result, error)
}

// PortfolioHandler refreshes everything derived from a portfolio after a
// PORTFOLIO_CHANGED event
type PortfolioHandler struct {
	store      domain.HoldingStore
	risk       RiskCalculator
	rebalancer SuggestionGenerator
	notifier   domain.NotificationSink
	log        zerolog.Logger
}

// NewPortfolioHandler creates a portfolio change handler
func NewPortfolioHandler(store domain.HoldingStore, risk RiskCalculator, rebalancer SuggestionGenerator, notifier domain.NotificationSink, log zerolog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		store:      store,
		risk:       risk,
		rebalancer: rebalancer,
		notifier:   notifier,
		log:        log.With().Str("handler", "portfolio_change").Logger(),
	}
}

// Handle runs the risk, rebalancing, alert and completion stages. Stage
// failures are logged; the handler itself never fails.
func (h *PortfolioHandler) Handle(ctx context.Context, event *events.Event) error {
	log := h.log.With().Str("event_id", event.EventID).Logger()

	payload, err := event.Payload()
	if err != nil {
		log.Warn().Err(err).Msg("Invalid portfolio payload, ignoring event")
		return nil
	}
	data, ok := payload.(*events.PortfolioChangedData)
	if !ok {
		log.Warn().Str("payload", fmt.Sprintf("%T", payload)).Msg("Unexpected payload for portfolio event, ignoring")
		return nil
	}
	if err := data.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid portfolio payload, ignoring event")
		return nil
	}

	userID := data.UserID
	if userID == "" {
		userID = event.UserID
	}

	run := &portfolioRun{
		PortfolioHandler: h,
		portfolioID:      data.PortfolioID,
		userID:           userID,
		data:             data,
		log:              log.With().Int64("portfolio_id", data.PortfolioID).Logger(),
	}

	failed := RunStages(ctx, run.log,
		Stage{Name: "risk", Run: run.riskStage},
		Stage{Name: "rebalancing", Run: run.rebalancingStage},
		Stage{Name: "alerts", Run: run.alertStage},
		Stage{Name: "completion", Run: run.completionStage},
	)

	run.log.Info().
		Str("action", data.Action).
		Strs("failed_stages", failed).
		Msg("Portfolio change processed")
	return nil
}

// portfolioRun carries the state of one Handle invocation
type portfolioRun struct {
	*PortfolioHandler
	portfolioID int64
	userID      string
	data        *events.PortfolioChangedData
	log         zerolog.Logger
}

func (r *portfolioRun) notify(ctx context.Context, n domain.Notification) {
	if r.userID == "" {
		return
	}
	n.UserID = r.userID
	if r.notifier.Create(ctx, n) == "" {
		r.log.Warn().Str("type", string(n.Type)).Msg("Notification not created")
	}
}

func (r *portfolioRun) riskStage(ctx context.Context) error {
	metrics, err := r.risk.Calculate(ctx, r.portfolioID, true)
	if errors.Is(err, domain.ErrInsufficientData) {
		r.log.Info().Err(err).Msg("Skipping risk metrics")
		return nil
	}
	if err != nil {
		return err
	}
	r.log.Debug().Int("holdings", metrics.HoldingsCount).Msg("Risk metrics refreshed")
	return nil
}

func (r *portfolioRun) rebalancingStage(ctx context.Context) error {
	result, err := r.rebalancer.Regenerate(ctx, r.portfolioID)
	if err != nil {
		return err
	}

	count := len(result.Suggestions)
	if count == 0 {
		return nil
	}

	r.notify(ctx, domain.Notification{
		Type:     domain.NotificationRebalancingSuggested,
		Title:    "Rebalancing suggested",
		Message:  fmt.Sprintf("%d rebalancing %s available for your portfolio.", count, plural(count, "suggestion", "suggestions")),
		Data:     map[string]interface{}{"portfolio_id": r.portfolioID, "count": count},
		Priority: domain.NotificationPriorityNormal,
	})
	return nil
}

func (r *portfolioRun) alertStage(ctx context.Context) error {
	holdings, err := r.store.GetHoldings(ctx, r.portfolioID)
	if err != nil {
		return err
	}

	var stopLoss, targetPrice int
	for _, h := range holdings {
		pct, ok := h.UnrealizedPLPct()
		if !ok {
			continue
		}

		switch {
		case pct <= StopLossPct:
			stopLoss++
			r.notify(ctx, domain.Notification{
				Type:     domain.NotificationStopLoss,
				Title:    fmt.Sprintf("Stop-loss: %s", h.Ticker),
				Message:  fmt.Sprintf("%s is down %.1f%% from your average cost of %.2f.", h.Ticker, -pct, h.AvgCost),
				Data:     plData(r.portfolioID, h, pct),
				Priority: domain.NotificationPriorityHigh,
			})
		case pct >= TargetPricePct:
			targetPrice++
			r.notify(ctx, domain.Notification{
				Type:     domain.NotificationTargetPrice,
				Title:    fmt.Sprintf("Target reached: %s", h.Ticker),
				Message:  fmt.Sprintf("%s is up %.1f%% from your average cost of %.2f.", h.Ticker, pct, h.AvgCost),
				Data:     plData(r.portfolioID, h, pct),
				Priority: domain.NotificationPriorityNormal,
			})
		}
	}

	if stopLoss+targetPrice > 0 {
		r.log.Info().Int("stop_loss", stopLoss).Int("target_price", targetPrice).Msg("Price alerts raised")
	}
	return nil
}

func plData(portfolioID int64, h domain.Holding, pct float64) map[string]interface{} {
	return map[string]interface{}{
		"portfolio_id":   portfolioID,
		"ticker":         h.Ticker,
		"avg_cost":       h.AvgCost,
		"current_price":  h.CurrentPrice,
		"unrealized_pct": pct,
	}
}

func (r *portfolioRun) completionStage(ctx context.Context) error {
	n := domain.Notification{
		Data:     map[string]interface{}{"portfolio_id": r.portfolioID},
		Priority: domain.NotificationPriorityLow,
	}

	switch r.data.Action {
	case events.ActionUpload:
		n.Type = domain.NotificationUploadComplete
		n.Title = "Portfolio upload complete"
		n.Message = "Your portfolio upload has been processed."
		if r.data.HoldingsCount != nil {
			count := *r.data.HoldingsCount
			n.Message = fmt.Sprintf("Your portfolio upload has been processed: %d %s imported.", count, plural(count, "holding", "holdings"))
			n.Data["holdings_count"] = count
		}
	case events.ActionAnalyze:
		n.Type = domain.NotificationAnalysisComplete
		n.Title = "Portfolio analysis complete"
		n.Message = "Risk metrics and rebalancing suggestions for your portfolio are up to date."
	default:
		n.Type = domain.NotificationPortfolioUpdated
		n.Title = "Portfolio updated"
		n.Message = "Your portfolio has been updated."
	}

	r.notify(ctx, n)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
