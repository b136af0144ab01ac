package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-app/skywatch-server/internal/errors"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Classifiers: []Classifier{DomainRetryable, NetworkError},
	}
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.Transient("upstream 503")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableReturnsUnchanged(t *testing.T) {
	calls := 0
	cause := errors.NotFound("record gone")
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return cause
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, error(cause), err, "non-retryable errors pass through untouched")
}

func TestDo_ExhaustionWrapsLastError(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.RateLimited("upstream 429")
	})

	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.True(t, errors.Is(err, errors.ErrRateLimited), "cause stays reachable through Unwrap")
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := fastPolicy()
	policy.BaseDelay = time.Hour // would block forever without cancellation

	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(ctx context.Context) error {
			calls++
			return errors.Transient("keep trying")
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{Classifiers: []Classifier{DomainRetryable}}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.Transient("no budget")
	})

	assert.Equal(t, 1, calls)
	var exhausted *ExhaustedError
	assert.True(t, errors.As(err, &exhausted))
}

func TestDomainRetryable(t *testing.T) {
	assert.True(t, DomainRetryable(errors.RateLimited("429")))
	assert.True(t, DomainRetryable(errors.Transient("503")))
	assert.False(t, DomainRetryable(errors.NotFound("404")))
	assert.False(t, DomainRetryable(errors.Validation("bad input")))
	assert.False(t, DomainRetryable(errors.New("plain error")))

	// Wrapped domain errors still classify.
	wrapped := errors.Wrap(errors.Transient("inner"), errors.CodeTransient, "outer")
	assert.True(t, DomainRetryable(wrapped))
}
