// Package pipeline holds the event handlers that propagate signals, refresh
// derived portfolio data and escalate drift, plus their registration on the bus.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Stage is one independently guarded step of a handler
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunStages runs every stage in order. A stage that returns an error or
// panics is logged and does not stop the stages after it. Returns the names
// of the failed stages.
func RunStages(ctx context.Context, log zerolog.Logger, stages ...Stage) []string {
	var failed []string
	for _, stage := range stages {
		if err := runStage(ctx, stage); err != nil {
			log.Error().Err(err).Str("stage", stage.Name).Msg("Stage failed")
			failed = append(failed, stage.Name)
		}
	}
	return failed
}

func runStage(ctx context.Context, stage Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return stage.Run(ctx)
}
