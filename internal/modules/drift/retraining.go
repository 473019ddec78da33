package drift

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetrainCooldown suppresses repeated requests for the same model
const DefaultRetrainCooldown = time.Hour

// RetrainingTrigger records retraining requests in the log. Requests for a
// model inside its cooldown window are dropped.
type RetrainingTrigger struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
	now      func() time.Time
	log      zerolog.Logger
}

// NewRetrainingTrigger creates a trigger; a non-positive cooldown disables it
func NewRetrainingTrigger(cooldown time.Duration, log zerolog.Logger) *RetrainingTrigger {
	return &RetrainingTrigger{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
		log:      log.With().Str("component", "retraining_trigger").Logger(),
	}
}

// TriggerRetraining requests a retraining run for modelID
func (r *RetrainingTrigger) TriggerRetraining(ctx context.Context, modelID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	now := r.now()
	if last, ok := r.last[modelID]; ok && r.cooldown > 0 && now.Sub(last) < r.cooldown {
		r.mu.Unlock()
		r.log.Debug().
			Str("model_id", modelID).
			Time("last_requested", last).
			Msg("Retraining already requested recently, skipping")
		return nil
	}
	r.last[modelID] = now
	r.mu.Unlock()

	r.log.Info().
		Str("model_id", modelID).
		Str("reason", reason).
		Msg("Retraining requested")
	return nil
}

// Requested reports whether a retraining run was requested for modelID
func (r *RetrainingTrigger) Requested(modelID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.last[modelID]
	return t, ok
}
