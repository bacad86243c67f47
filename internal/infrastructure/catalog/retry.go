package catalog

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"CatalogPoster/internal/domain"
)

const defaultMaxAttempts = 3

// linearBackOff waits delay × attempt between attempts.
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.delay * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() { b.attempt = 0 }

// retry runs op until it succeeds, returns a non-retryable error, or
// maxAttempts is exhausted.
func retry(ctx context.Context, delay time.Duration, maxAttempts int, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: delay}, uint64(maxAttempts-1)),
		ctx,
	)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
