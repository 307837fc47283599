package publish

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/ibs-source/resequencer/internal/platform"
)

// RetryPolicy bounds how long a write is retried. The zero value retries
// forever without waiting between attempts.
type RetryPolicy struct {
	// MaxAttempts caps the number of write requests per chunk. 0 is unlimited.
	MaxAttempts int
	// Backoff is the wait before the first retry; it doubles on each retry.
	Backoff time.Duration
	// MaxBackoff caps the wait. 0 leaves it uncapped.
	MaxBackoff time.Duration
}

// Unlimited reports whether the policy never gives up on its own.
func (p RetryPolicy) Unlimited() bool {
	return p.MaxAttempts <= 0
}

// do runs fn under the policy until it succeeds, the attempts run out, ctx
// is done, or fn fails with an error retryIf rejects. The returned error is
// the last one fn produced, or ctx's error.
func (p RetryPolicy) do(ctx context.Context, fn func() error, retryIf func(error) bool, onRetry retry.OnRetryFunc) error {
	var permanent error
	err := retry.Do(func() error {
		err := fn()
		if err != nil && !retryIf(err) {
			permanent = err
			return retry.Unrecoverable(err)
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(uint(max(p.MaxAttempts, 0))), // #nosec G115 - clamped non-negative
		retry.LastErrorOnly(true),
		retry.OnRetry(onRetry),
		retry.Delay(p.Backoff),
		retry.MaxDelay(p.MaxBackoff),
		retry.DelayType(p.delayType()),
	)
	if permanent != nil {
		return permanent
	}
	return err
}

func (p RetryPolicy) delayType() retry.DelayTypeFunc {
	if p.Backoff > 0 {
		return retry.BackOffDelay
	}
	return func(uint, error, *retry.Config) time.Duration { return 0 }
}

// retryableWrite rejects errors no amount of retrying can fix.
func retryableWrite(err error) bool {
	return !errors.Is(err, platform.ErrQueueNotFound) &&
		!errors.Is(err, platform.ErrInvalidState) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func retryableSingle(err error) bool {
	return errors.Is(err, platform.ErrThrottled)
}
