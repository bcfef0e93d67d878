package workbook

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/ginjaninja78/ledgersync/pkg/errors"
)

// RetryPolicy bounds Retry.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy matches the usual time an office client needs to
// release a synced ledger file.
var DefaultRetryPolicy = RetryPolicy{Attempts: 25, Delay: 500 * time.Millisecond}

// backOff is a constant delay capped at the policy's attempts, stopped early
// when ctx is done.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)
}

// Retry runs fn until it succeeds, fails with an error that is not busy, or
// the attempts run out. Exhaustion returns a *errors.BusyError wrapping the
// last error.
func Retry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	log := logging.FromContext(ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !errors.IsBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx), func(err error, next time.Duration) {
		log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Dur("next", next).Msg("file busy, retrying")
	})

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return fmt.Errorf("%s: %w", op, err)
	case errors.IsBusy(err):
		return &errors.BusyError{Op: fmt.Sprintf("%s (gave up after %d attempts)", op, attempt), Err: err}
	default:
		return err
	}
}

// OpenWithRetry opens a workbook under Retry.
func OpenWithRetry(ctx context.Context, policy RetryPolicy, path, password string) (*Workbook, error) {
	var wb *Workbook
	err := Retry(ctx, policy, "open "+path, func() error {
		var err error
		wb, err = Open(path, password)
		return err
	})
	return wb, err
}

// SaveWithRetry saves a store under Retry.
func SaveWithRetry(ctx context.Context, policy RetryPolicy, store Store) error {
	return Retry(ctx, policy, "save "+store.Path(), store.Save)
}
