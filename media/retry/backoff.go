package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/BaSui01/mediagen/types"
	"go.uber.org/zap"
)

// RetryPolicy 转存下载/上传的重试参数。
type RetryPolicy struct {
	MaxRetries   int // 不含首次尝试，0 表示不重试
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool // ±25%

	// ShouldRetry 为空时 *types.Error 看 Retryable，其它错误都重试
	ShouldRetry func(err error) bool
	OnRetry     func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy: 3 attempts, 1s doubling up to 30s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Retryer runs a function until it succeeds, fails permanently or runs out
// of attempts.
type Retryer interface {
	Do(ctx context.Context, fn func() error) error
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy RetryPolicy
	logger *zap.Logger
}

// NewBackoffRetryer 返回指数退避 Retryer；非法字段回落到默认值
func NewBackoffRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &backoffRetryer{policy: sanitize(policy), logger: logger}
}

func sanitize(policy *RetryPolicy) RetryPolicy {
	def := DefaultRetryPolicy()
	if policy == nil {
		return *def
	}
	p := *policy
	p.MaxRetries = max(p.MaxRetries, 0)
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) { return nil, fn() })
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	attempts := r.policy.MaxRetries + 1

	result, err := fn()
	for attempt := 1; err != nil; attempt++ {
		if !r.retryable(err) {
			return nil, err
		}
		if attempt >= attempts {
			r.logger.Warn("retries exhausted", zap.Int("attempts", attempts), zap.Error(err))
			return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}

		delay := r.calculateDelay(attempt)
		r.logger.Debug("retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err, delay)
		}
		if werr := wait(ctx, delay); werr != nil {
			return nil, fmt.Errorf("retry canceled: %w", werr)
		}

		result, err = fn()
		if err == nil {
			r.logger.Debug("retry succeeded", zap.Int("attempt", attempt))
		}
	}
	return result, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// calculateDelay 第 n 次重试前的等待：initial * multiplier^(n-1)，
// 落在 [InitialDelay, MaxDelay] 内
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	p := r.policy
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Jitter {
		d += d * 0.25 * (rand.Float64()*2 - 1)
	}
	d = math.Min(d, float64(p.MaxDelay))
	d = math.Max(d, float64(p.InitialDelay))
	return time.Duration(d)
}

func (r *backoffRetryer) retryable(err error) bool {
	if r.policy.ShouldRetry != nil {
		return r.policy.ShouldRetry(err)
	}
	if e, ok := types.AsError(err); ok {
		return e.Retryable
	}
	return true
}
