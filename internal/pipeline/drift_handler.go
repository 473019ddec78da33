package pipeline

import (
	"context"
	"fmt"

	"github.com/aristath/pulse/internal/domain"
	"github.com/aristath/pulse/internal/events"
	"github.com/rs/zerolog"
)

// DriftHandler escalates MODEL_DRIFT_DETECTED events
type DriftHandler struct {
	admin     domain.AdminNotifier
	retrainer domain.RetrainingTrigger
	log       zerolog.Logger
}

// NewDriftHandler creates a drift handler
func NewDriftHandler(admin domain.AdminNotifier, retrainer domain.RetrainingTrigger, log zerolog.Logger) *DriftHandler {
	return &DriftHandler{
		admin:     admin,
		retrainer: retrainer,
		log:       log.With().Str("handler", "model_drift").Logger(),
	}
}

// Handle notifies administrators and, when requested, triggers retraining
func (h *DriftHandler) Handle(ctx context.Context, event *events.Event) error {
	log := h.log.With().Str("event_id", event.EventID).Logger()

	payload, err := event.Payload()
	if err != nil {
		log.Warn().Err(err).Msg("Invalid drift payload, ignoring event")
		return nil
	}
	data, ok := payload.(*events.ModelDriftData)
	if !ok {
		log.Warn().Str("payload", fmt.Sprintf("%T", payload)).Msg("Unexpected payload for drift event, ignoring")
		return nil
	}
	if err := data.Validate(); err != nil {
		log.Warn().Err(err).Msg("Invalid drift payload, ignoring event")
		return nil
	}

	log.Warn().
		Str("model_id", data.ModelID).
		Float64("drift_score", data.DriftScore).
		Bool("auto_retrain", data.AutoRetrain).
		Msg("Model drift detected")

	if err := h.admin.NotifyDrift(ctx, data.Report()); err != nil {
		log.Error().Err(err).Str("model_id", data.ModelID).Msg("Failed to notify administrators of drift")
	}

	if !data.AutoRetrain {
		return nil
	}
	reason := fmt.Sprintf("drift score %.3f", data.DriftScore)
	if data.Threshold != nil {
		reason = fmt.Sprintf("drift score %.3f above threshold %.3f", data.DriftScore, *data.Threshold)
	}
	if err := h.retrainer.TriggerRetraining(ctx, data.ModelID, reason); err != nil {
		return fmt.Errorf("trigger retraining for %s: %w", data.ModelID, err)
	}
	return nil
}
