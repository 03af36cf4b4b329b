package retry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// TransientError is implemented by transport errors that report
// whether a retry can succeed. This is the preferred classification:
// typed, supplied by the error source itself.
type TransientError interface {
	error
	Transient() bool
}

// transientFragments is the fallback classification for errors whose
// source exposes no typed signal. Substring matching against textual
// error codes is fragile and kept only as a last resort for wrapped
// transport errors from third-party clients.
var transientFragments = []string{
	"too many requests",
	"rate limit",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"connection reset",
	"connection refused",
	"timeout awaiting",
	"EOF",
}

// Transient reports whether err is worth retrying. Application-level
// rejections must never be retried blindly: resubmitting a ledger
// transaction with different inputs can double-execute side effects.
func Transient(err error) bool {
	var te TransientError
	if errors.As(err, &te) {
		return te.Transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	message := err.Error()
	for _, fragment := range transientFragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

// Notify observes each retry before its backoff sleep.
type Notify func(attempt int, delay time.Duration, err error)

// Do invokes op until it succeeds, fails non-transiently, or the
// strategy is exhausted. The backoff sleep is the only cancellation
// point; cancelling there abandons the operation with ctx.Err().
func Do[T any](ctx context.Context, backoff *Backoff, notify Notify, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !Transient(err) {
			return zero, err
		}

		delay, ok := backoff.Next()
		if !ok {
			return zero, err
		}
		if notify != nil {
			notify(backoff.Attempt(), delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}
