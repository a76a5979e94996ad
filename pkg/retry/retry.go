// Package retry runs actions repeatedly according to a chain of strategies.
package retry

import "context"

// Action is a unit of work that may fail transiently.
type Action func(ctx context.Context) error

// Retrier retries the provided action.
type Retrier interface {
	Retry(ctx context.Context, action Action) (uint, error)
}

type retrier struct {
	strategies []Strategy
}

// NewRetrier returns a Retrier bound to the given strategies. Without any
// strategy the action is retried until it succeeds or ctx is done.
func NewRetrier(strategies ...Strategy) Retrier {
	return &retrier{strategies: strategies}
}

func (r *retrier) Retry(ctx context.Context, action Action) (uint, error) {
	return Retry(ctx, action, r.strategies...)
}

// Retry executes action until it succeeds, a strategy vetoes another
// attempt, or ctx is done. It returns the number of attempts made and the
// last error observed.
//
// Strategies run in order after every failed attempt, so anything that
// sleeps belongs at the end of the chain.
func Retry(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	for attempt := uint(1); ; attempt++ {
		err := action(ctx)
		if err == nil {
			return attempt, nil
		}

		for _, s := range strategies {
			if !s(ctx, attempt, err) {
				return attempt, err
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, err
		}
	}
}
