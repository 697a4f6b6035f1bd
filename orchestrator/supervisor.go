package orchestrator

import (
	"context"
	"fmt"

	"github.com/opencode-ai/orchestrator/telemetry"
)

// runSupervised runs fn, restarting it up to maxRestarts times if it panics
// or returns an error, mirroring SupervisorStrategy.RESTART from
// original_source's SupervisorActor: a crashing unit gets a bounded number
// of fresh attempts before the supervisor gives up and propagates the
// failure to the caller.
func runSupervised(ctx context.Context, log telemetry.Logger, name string, maxRestarts int, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRestarts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := runGuarded(fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxRestarts {
			log.Warn(ctx, "orchestrator: pipeline crashed, restarting", "name", name, "attempt", attempt+1, "max_restarts", maxRestarts, "error", err.Error())
		}
	}
	return fmt.Errorf("orchestrator: %s exceeded max restarts (%d): %w", name, maxRestarts, lastErr)
}

// runGuarded converts a panic raised by fn into an error so runSupervised
// can treat it the same as a returned error.
func runGuarded(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
