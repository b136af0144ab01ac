// Package retry re-executes failed operations with exponential backoff,
// gated by classifiers that decide which failures are worth retrying.
package retry

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// Classifier reports whether an error is retryable.
type Classifier func(error) bool

// DomainRetryable matches domain errors flagged retryable
// (rate-limited and transient, which covers server-side 5xx).
func DomainRetryable(err error) bool {
	var derr *errors.Error
	if errors.As(err, &derr) {
		return derr.Retryable()
	}
	return false
}

// NetworkError matches transport-level failures (timeouts, resets, DNS).
func NetworkError(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr)
}

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts is the total attempt ceiling, including the first.
	MaxAttempts int
	// BaseDelay is the wait after the first failure; it doubles each
	// attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Classifiers decide retryability. An error no classifier matches
	// stops the loop immediately.
	Classifiers []Classifier
}

// DefaultPolicy retries rate-limited, network-level, and server-side
// failures up to 4 attempts with 1s -> 2s -> 4s backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Classifiers: []Classifier{DomainRetryable, NetworkError},
	}
}

// ExhaustedError wraps the last failure once the attempt ceiling is hit.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap returns the last underlying failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Do runs op, retrying per the policy. It returns nil on the first success,
// the error unchanged when a non-retryable failure is seen, and an
// ExhaustedError once the attempt ceiling is reached.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return &ExhaustedError{Attempts: attempts, Cause: lastErr}
}

func (p Policy) retryable(err error) bool {
	for _, c := range p.Classifiers {
		if c(err) {
			return true
		}
	}
	return false
}
