package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/mediagen/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 2, p.MaxRetries, "3 attempts in total")
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
}

func TestBackoffRetryer_Success(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount, "应该只调用一次")
}

func TestBackoffRetryer_RetryAndSuccess(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount, "应该调用三次")
}

func TestBackoffRetryer_MaxRetriesExceeded(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(2), zap.NewNop())

	callCount := 0
	testErr := errors.New("persistent error")
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return testErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 3, callCount)
}

func TestBackoffRetryer_NonRetryableTypedError(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	callCount := 0
	err := retryer.Do(context.Background(), func() error {
		callCount++
		return types.NewError(types.ErrProviderError, "not found").WithHTTPStatus(404)
	})

	assert.True(t, types.IsErrorCode(err, types.ErrProviderError))
	assert.Equal(t, 1, callCount, "不可重试错误不应重试")
}

func TestBackoffRetryer_ShouldRetryOverride(t *testing.T) {
	policy := fastPolicy(3)
	policy.ShouldRetry = func(error) bool { return false }
	retryer := NewBackoffRetryer(policy, zap.NewNop())

	callCount := 0
	_ = retryer.Do(context.Background(), func() error {
		callCount++
		return errors.New("x")
	})
	assert.Equal(t, 1, callCount)
}

func TestBackoffRetryer_ContextCanceled(t *testing.T) {
	policy := fastPolicy(5)
	policy.InitialDelay = time.Second
	policy.MaxDelay = time.Second
	retryer := NewBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := retryer.Do(ctx, func() error { return errors.New("fail") })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBackoffRetryer_OnRetryDelays(t *testing.T) {
	policy := fastPolicy(3)
	var delays []time.Duration
	policy.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }
	retryer := NewBackoffRetryer(policy, zap.NewNop())

	_ = retryer.Do(context.Background(), func() error { return errors.New("fail") })

	assert.Equal(t, []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}, delays)
}

func TestCalculateDelay_Capped(t *testing.T) {
	r := NewBackoffRetryer(DefaultRetryPolicy(), nil).(*backoffRetryer)

	assert.Equal(t, 1*time.Second, r.calculateDelay(1))
	assert.Equal(t, 2*time.Second, r.calculateDelay(2))
	assert.Equal(t, 16*time.Second, r.calculateDelay(5))
	assert.Equal(t, 30*time.Second, r.calculateDelay(6))
	assert.Equal(t, 30*time.Second, r.calculateDelay(20))
}

func TestCalculateDelay_JitterBounds(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.Jitter = true
	r := NewBackoffRetryer(policy, nil).(*backoffRetryer)

	for i := 0; i < 50; i++ {
		d := r.calculateDelay(3)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestDoWithResultTyped(t *testing.T) {
	retryer := NewBackoffRetryer(fastPolicy(1), zap.NewNop())

	calls := 0
	data, err := DoWithResultTyped[[]byte](retryer, context.Background(), func() ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("flaky")
		}
		return []byte("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)

	_, err = DoWithResultTyped[int](retryer, context.Background(), func() (int, error) {
		return 0, errors.New("always")
	})
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	p := sanitize(&RetryPolicy{MaxRetries: -3, Multiplier: 0.5, Jitter: true})
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.True(t, p.Jitter)

	assert.Equal(t, *DefaultRetryPolicy(), sanitize(nil))
}
