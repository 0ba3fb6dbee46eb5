package directory

import (
	"context"
	"time"
)

// Decider decides whether a failed coin list fetch should be attempted again.
// attempt counts the fetches made so far, starting at 1.
type Decider interface {
	Retry(ctx context.Context, attempt int, err error) bool
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, attempt int, err error) bool

func (f DeciderFunc) Retry(ctx context.Context, attempt int, err error) bool {
	return f(ctx, attempt, err)
}

var (
	// AutoRetry always retries; pair it with a bounded MaxAttempts.
	AutoRetry Decider = DeciderFunc(func(context.Context, int, error) bool { return true })
	// NeverRetry gives up after the first failure.
	NeverRetry Decider = DeciderFunc(func(context.Context, int, error) bool { return false })
)

// Policy bounds the fetch loop.
type Policy struct {
	MaxAttempts int           // <= 0 means unbounded
	Backoff     time.Duration // pause before each retry
	Decider     Decider
}

func (p Policy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

func (p Policy) decider() Decider {
	if p.Decider == nil {
		return NeverRetry
	}
	return p.Decider
}

func (p Policy) wait(ctx context.Context) error {
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
