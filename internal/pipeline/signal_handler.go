package pipeline

import (
	"context"
	"fmt"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/events"
	"github.com/aristath/pulse/internal/utils"
	"github.com/rs/zerolog"
)

// Emitter publishes follow-up events
type Emitter interface {
	Emit(ctx context.Context, source string, data events.EventData, opts ...events.Option) (*events.Event, error)
}

// SuggestionInvalidator drops a portfolio's cached rebalancing suggestions
type SuggestionInvalidator interface {
	Invalidate(ctx context.Context, portfolioID int64) error
}

// IsSignificantChange reports whether moving from prev to next warrants
// invalidation and an alert. That is the case when there was no previous
// signal, when the move lands on a different side of HOLD, or when it jumps
// more than one level.
func IsSignificantChange(prev, next domain.Signal) bool {
	oldLevel, newLevel := prev.Level(), next.Level()
	if oldLevel == 0 {
		return true
	}
	if side(oldLevel) != side(newLevel) {
		return true
	}
	delta := newLevel - oldLevel
	if delta < 0 {
		delta = -delta
	}
	return delta > 1
}

func side(level int) int {
	switch {
	case level < domain.NeutralLevel:
		return -1
	case level > domain.NeutralLevel:
		return 1
	default:
		return 0
	}
}

// SignalHandler propagates SIGNAL_GENERATED events into held positions
type SignalHandler struct {
	store       domain.HoldingStore
	suggestions SuggestionInvalidator
	emitter     Emitter
	log         zerolog.Logger
}

// NewSignalHandler creates a signal change handler
func NewSignalHandler(store domain.HoldingStore, suggestions SuggestionInvalidator, emitter Emitter, log zerolog.Logger) *SignalHandler {
	return &SignalHandler{
		store:       store,
		suggestions: suggestions,
		emitter:     emitter,
		log:         log.With().Str("handler", "signal_change").Logger(),
	}
}

// Handle applies the new signal to every active holding of the ticker
func (h *SignalHandler) Handle(ctx context.Context, event *events.Event) error {
	log := h.log.With().Str("event_id", event.EventID).Logger()

	payload, err := event.Payload()
	if err != nil {
		log.Warn().Err(err).Msg("Invalid signal payload, ignoring event")
		return nil
	}
	data, ok := payload.(*events.SignalGeneratedData)
	if !ok {
		log.Warn().Str("payload", fmt.Sprintf("%T", payload)).Msg("Unexpected payload for signal event, ignoring")
		return nil
	}
	if err := data.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid signal payload, ignoring event")
		return nil
	}

	ticker := utils.NormalizeTicker(data.Ticker)
	signal, _ := domain.ParseSignal(data.Signal)
	confidence := data.ConfidenceOrZero()
	model := data.ModelOrUnknown()
	log = log.With().Str("ticker", ticker).Logger()

	holdings, err := h.store.FindHoldingsByTicker(ctx, ticker)
	if err != nil {
		return fmt.Errorf("find holdings for %s: %w", ticker, err)
	}
	if len(holdings) == 0 {
		log.Debug().Msg("No active holdings for ticker")
		return nil
	}

	var (
		affected    []int64
		seen        = make(map[int64]bool)
		significant int
	)
	for _, holding := range holdings {
		hlog := log.With().Int64("portfolio_id", holding.PortfolioID).Int64("holding_id", holding.ID).Logger()
		oldSignal := holding.CurrentSignal

		if err := h.store.UpdateHoldingSignal(ctx, holding.ID, signal, confidence, model); err != nil {
			hlog.Error().Err(err).Msg("Failed to update holding signal")
			continue
		}
		if !seen[holding.PortfolioID] {
			seen[holding.PortfolioID] = true
			affected = append(affected, holding.PortfolioID)
		}

		if !IsSignificantChange(oldSignal, signal) {
			continue
		}
		significant++

		if err := h.suggestions.Invalidate(ctx, holding.PortfolioID); err != nil {
			hlog.Error().Err(err).Msg("Failed to invalidate rebalancing suggestions")
		}

		_, err := h.emitter.Emit(ctx, "signal_handler", &events.AlertTriggeredData{
			AlertType:   events.AlertSignalChange,
			UserID:      holding.UserID,
			PortfolioID: holding.PortfolioID,
			Ticker:      ticker,
			OldSignal:   string(oldSignal),
			NewSignal:   string(signal),
			Confidence:  confidence,
		}, events.WithCorrelationID(event.EventID), events.WithUserID(holding.UserID))
		if err != nil {
			hlog.Error().Err(err).Msg("Failed to emit signal change alert")
		}
	}

	for _, portfolioID := range affected {
		if err := h.store.UpdatePortfolioTotals(ctx, portfolioID); err != nil {
			log.Error().Err(err).Int64("portfolio_id", portfolioID).Msg("Failed to update portfolio totals")
		}
	}

	log.Info().
		Str("signal", string(signal)).
		Int("holdings", len(holdings)).
		Int("significant", significant).
		Int("portfolios", len(affected)).
		Msg("Signal propagated")
	return nil
}
