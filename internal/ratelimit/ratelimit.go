// Package ratelimit provides admission control for outbound network calls:
// a token bucket caps request volume and a weighted semaphore bounds how many
// calls are in flight at once. Callers block cooperatively until admitted,
// up to a maximum acceptable wait.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// Limiter gates every outbound call made by the hydrators and the blob
// processor. All of them share one budget.
type Limiter struct {
	bucket   *rate.Limiter
	inflight *semaphore.Weighted
	maxWait  time.Duration
}

// Config holds limiter settings.
type Config struct {
	// RPS is the sustained requests-per-second ceiling.
	RPS float64
	// Burst is the number of tokens available immediately.
	Burst int
	// MaxInflight bounds concurrently in-flight calls.
	MaxInflight int64
	// MaxWait is the longest a caller may block waiting for admission
	// before the call is rejected. Zero means wait as long as the
	// caller's context allows.
	MaxWait time.Duration
}

// New creates a limiter with the given settings.
func New(cfg Config) *Limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.MaxInflight < 1 {
		cfg.MaxInflight = 1
	}
	return &Limiter{
		bucket:   rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		inflight: semaphore.NewWeighted(cfg.MaxInflight),
		maxWait:  cfg.MaxWait,
	}
}

// Acquire blocks until a rate token and an in-flight slot are both held,
// then returns a release func the caller must invoke when the call ends.
// If admission takes longer than the configured maximum wait, the call is
// rejected with a rate-limited error instead of queueing indefinitely.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	wait := ctx
	ownDeadline := false
	if l.maxWait > 0 {
		// The limiter's deadline only binds when it is earlier than
		// anything the caller already carries.
		limit := time.Now().Add(l.maxWait)
		if callerLimit, ok := ctx.Deadline(); !ok || limit.Before(callerLimit) {
			ownDeadline = true
		}
		var cancel context.CancelFunc
		wait, cancel = context.WithDeadline(ctx, limit)
		defer cancel()
	}

	if err := l.inflight.Acquire(wait, 1); err != nil {
		return nil, admissionError(ctx, ownDeadline, err)
	}

	if err := l.bucket.Wait(wait); err != nil {
		l.inflight.Release(1)
		return nil, admissionError(ctx, ownDeadline, err)
	}

	return func() { l.inflight.Release(1) }, nil
}

// admissionError maps an admission wait failure: only the limiter's own
// wait budget expiring is a rate-limit rejection. A caller whose context
// was canceled or carried the binding deadline gets the failure untouched.
func admissionError(caller context.Context, ownDeadline bool, err error) error {
	if ownDeadline && caller.Err() == nil {
		return errors.Wrap(err, errors.CodeRateLimited, "admission wait exceeded")
	}
	return err
}
