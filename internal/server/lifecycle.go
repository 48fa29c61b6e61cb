package server

import (
	"context"
	"log/slog"
	"math"
	"runtime/debug"
	"time"
)

// RunWithRecovery runs fn in a loop, recovering from panics with exponential
// backoff. A clean return also restarts fn. It stops when ctx is cancelled.
func RunWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("goroutine stopped", "name", name, "reason", "context cancelled")
			return
		default:
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("goroutine panicked",
						"name", name,
						"panic", r,
						"stack", string(debug.Stack()),
						"attempt", attempt,
					)
				}
			}()
			fn(ctx)
		}()

		// If fn returned normally (not panic), check if context is done
		select {
		case <-ctx.Done():
			return
		default:
		}

		attempt++
		backoff := Backoff(attempt)
		logger.Warn("goroutine restarting",
			"name", name,
			"attempt", attempt,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// Backoff is the restart delay before the given attempt: 1s doubling up to 5m.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(math.Min(
		float64(time.Second)*math.Pow(2, float64(attempt-1)),
		float64(5*time.Minute),
	))
}
