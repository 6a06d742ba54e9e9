// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Policy bounds an operation.
type Policy struct {
	// Name identifies the operation in log lines.
	Name string
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// DelayFirst waits Delay before the first attempt too.
	DelayFirst bool
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
	Logger    *slog.Logger
}

// ErrNoAttempts is returned by Do when the policy allows zero attempts.
var ErrNoAttempts = errors.New("retry policy allows no attempts")

// Do runs op until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached. The error of the last attempt is
// returned; op is never called more than MaxAttempts times.
func Do(ctx context.Context, p Policy, op Operation) error {
	if p.MaxAttempts <= 0 {
		return ErrNoAttempts
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if p.DelayFirst && p.Delay > 0 {
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(p.MaxAttempts-1)),
		ctx,
	)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx, attempt)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("attempt failed, retrying",
			"operation", p.Name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"retry_in", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(operation, b, notify)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
