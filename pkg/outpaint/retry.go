package outpaint

import (
	"context"
	"time"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
)

// retry runs fn up to attempts times, doubling delay between attempts. Only
// REMOTE_TRANSIENT errors are retried; every attempt gets its own timeout.
// It returns the number of attempts made and the last error.
func retry(ctx context.Context, attempts int, delay, timeout time.Duration, fn func(ctx context.Context) error) (int, error) {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := classify(fn(actx))
		cancel()
		if err == nil {
			return i + 1, nil
		}
		if lastErr = err; !apperr.Transient(err) {
			return i + 1, err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return i + 1, apperr.Wrap(apperr.ErrCodeRemoteTransient, ctx.Err(), "retry aborted")
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return attempts, lastErr
}
