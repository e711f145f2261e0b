package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Varun2365/funnelseye/pkg/errors"
)

func testPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRetry_RetryableAppErrorExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func() error {
		attempts++
		return apperrors.Wrap(errors.New("mongo: connection reset"), apperrors.ErrInternal)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "an I/O error classified retryable must use every attempt")
}

func TestRetry_FatalAppErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func() error {
		attempts++
		return apperrors.ErrValidation.WithMessage("recipient phone number not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "a fatal error must not be retried")
}

func TestRetry_RetryableMarkerRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(2), func() error {
		attempts++
		return NewRetryableError(errors.New("gateway timeout"))
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_FatalMarkerStopsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func() error {
		attempts++
		return NewFatalError(errors.New("unknown action type"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), testPolicy(3), func() error {
		attempts++
		if attempts < 3 {
			return apperrors.Wrap(errors.New("redis: connection refused"), apperrors.ErrServiceUnavailable)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithCallback_ReportsEachRetry(t *testing.T) {
	var delays []time.Duration
	err := RetryWithCallback(context.Background(), testPolicy(3), func() error {
		return apperrors.Wrap(errors.New("write: broken pipe"), apperrors.ErrTimeout)
	}, func(attempt int, err error, nextDelay time.Duration) {
		delays = append(delays, nextDelay)
	})

	require.Error(t, err)
	assert.Len(t, delays, 2, "callback fires before each re-attempt, not after the last")
}
