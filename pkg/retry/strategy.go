package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"fx-history-service/pkg/retry/backoff"
)

// Strategy decides whether another attempt should be made after a failure.
// Strategies may block (e.g. to back off) and must honour ctx when they do.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Limit caps the total number of attempts, counting the first one.
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only allows a retry when err matches one of the given errors.
func RetriableErrors(retriable ...error) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		for _, e := range retriable {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	}
}

// NonRetriableErrors stops retrying as soon as err matches one of the given errors.
func NonRetriableErrors(nonRetriable ...error) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		for _, e := range nonRetriable {
			if errors.Is(err, e) {
				return false
			}
		}
		return true
	}
}

// Backoff waits for the delay produced by strategy, capped at maxBackoff,
// before the next attempt. It gives up early if ctx is done.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		return sleep(ctx, capDelay(strategy(attempts), maxBackoff))
	}
}

// BackoffWithJitter is Backoff with the capped delay randomly shifted by up
// to +/- jitter (a fraction, e.g. 0.1 for 10%).
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		delay := capDelay(strategy(attempts), maxBackoff)
		delay = time.Duration(float64(delay) * (1 + (rand.Float64()*2-1)*jitter))
		return sleep(ctx, delay)
	}
}

func capDelay(delay, maxBackoff time.Duration) time.Duration {
	return time.Duration(math.Min(float64(delay), float64(maxBackoff)))
}

var sleep = func(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
