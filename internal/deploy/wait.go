package deploy

import (
	"context"
	"log/slog"
	"time"
)

// SleepFunc sleeps for d or returns early with the context's error.
// Injectable so tests run the waiter without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitForPropagation gives IAM changes time to become visible to the serving
// path. It sleeps the base delay, then re-probes the service with exponential
// backoff until the probe stops reporting a permission failure or attempts
// run out. Running out of attempts is not an error; verification renders the
// final verdict either way.
func (p *Pipeline) waitForPropagation(ctx context.Context, serviceURL string) error {
	policy := p.cfg.Retry
	delay := policy.BaseDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		slog.Debug("waiting for permission propagation",
			"attempt", attempt, "max_attempts", policy.MaxAttempts, "delay", delay)
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}

		if p.prober.Health(ctx, serviceURL) != ResultPermissionDenied {
			return nil
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
	}

	slog.Warn("permissions still propagating after final attempt",
		"attempts", policy.MaxAttempts)
	return nil
}
