package base

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/BaSui01/mediagen/media"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultPollMaxDuration = 600 * time.Second
	DefaultPollInterval    = 60 * time.Second
	// MaxBackoffInterval caps exponential polling delays.
	MaxBackoffInterval = 300 * time.Second
	backoffFactor      = 1.5
)

// Request parameter keys that override polling behavior per call.
const (
	ParamPollInterval       = "pollIntervalSeconds"
	ParamMaxDuration        = "maxDurationSeconds"
	ParamExponentialBackoff = "exponentialBackoff"
	ParamAsync              = "async"
)

// PollOptions controls PollTaskUntilComplete. Zero fields mean "not set".
type PollOptions struct {
	MaxDuration        time.Duration
	Interval           time.Duration
	ExponentialBackoff bool
}

// merge fills unset fields of o from fallback.
func (o PollOptions) merge(fallback PollOptions) PollOptions {
	if o.MaxDuration <= 0 {
		o.MaxDuration = fallback.MaxDuration
	}
	if o.Interval <= 0 {
		o.Interval = fallback.Interval
	}
	o.ExponentialBackoff = o.ExponentialBackoff || fallback.ExponentialBackoff
	return o
}

// PollResult is the outcome of a polling loop.
type PollResult struct {
	Status   *media.TaskStatusResponse
	Attempts int
	Elapsed  time.Duration
}

// NextPollDelay returns the wait after the attempt-th non-terminal check.
func NextPollDelay(opts PollOptions, attempt int) time.Duration {
	if !opts.ExponentialBackoff || attempt < 1 {
		return opts.Interval
	}
	d := float64(opts.Interval) * math.Pow(backoffFactor, float64(attempt-1))
	if d > float64(MaxBackoffInterval) {
		return MaxBackoffInterval
	}
	return time.Duration(d)
}

// PollOptionsFor resolves polling options for req.
func (b *Base) PollOptionsFor(req *media.UnifiedGenerationRequest) PollOptions {
	var fromReq PollOptions
	if req != nil {
		if v, ok := floatParam(req, ParamPollInterval); ok && v > 0 {
			fromReq.Interval = time.Duration(v * float64(time.Second))
		}
		if v, ok := floatParam(req, ParamMaxDuration); ok && v > 0 {
			fromReq.MaxDuration = time.Duration(v * float64(time.Second))
		}
		fromReq.ExponentialBackoff = req.BoolParam(ParamExponentialBackoff)
	}
	return fromReq.
		merge(b.pollOverride).
		merge(b.pollDefaults).
		merge(PollOptions{MaxDuration: DefaultPollMaxDuration, Interval: DefaultPollInterval})
}

// PollTaskUntilComplete checks taskID until it is terminal or MaxDuration
// elapses. The first check runs immediately. A failing check is retried
// after the base interval. On deadline the result is a synthetic FAILED
// status with TimedOut set.
func (b *Base) PollTaskUntilComplete(ctx context.Context, checker media.TaskChecker, taskID string, opts PollOptions) PollResult {
	opts = opts.merge(PollOptions{MaxDuration: DefaultPollMaxDuration, Interval: DefaultPollInterval})

	ctx, span := b.tracer.Start(ctx, "adapter.poll")
	defer span.End()
	span.SetAttributes(attribute.String("mediagen.task_id", taskID))

	start := b.now()
	pollCtx, cancel := context.WithDeadline(ctx, start.Add(opts.MaxDuration))
	defer cancel()

	logger := b.logger.With(zap.String("task_id", taskID))
	attempts := 0
	pending := 0

	result := func(st *media.TaskStatusResponse, outcome string) PollResult {
		elapsed := b.now().Sub(start)
		span.SetAttributes(
			attribute.Int("mediagen.poll_attempts", attempts),
			attribute.String("mediagen.poll_outcome", outcome),
		)
		b.metrics.RecordPoll(b.name, outcome, attempts)
		logger.Info("polling finished",
			zap.String("outcome", outcome),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
		)
		return PollResult{Status: st, Attempts: attempts, Elapsed: elapsed}
	}

	for {
		attempts++
		st, err := checker.CheckTaskStatus(pollCtx, taskID)

		wait := opts.Interval
		switch {
		case err != nil:
			if pollCtx.Err() == nil {
				logger.Warn("status check failed, retrying", zap.Int("attempt", attempts), zap.Error(err))
			}
		case st == nil:
			logger.Warn("status check returned nothing", zap.Int("attempt", attempts))
		case st.Status == media.TaskSucceeded:
			return result(st, "success")
		case st.Status == media.TaskFailed:
			return result(st, "failed")
		default:
			pending++
			wait = NextPollDelay(opts, pending)
			logger.Debug("task pending", zap.Int("attempt", attempts), zap.Duration("next", wait))
		}

		if deadline, ok := pollCtx.Deadline(); ok {
			if remaining := deadline.Sub(b.now()); remaining < wait {
				wait = remaining
			}
		}
		if wait <= 0 || b.sleep(pollCtx, wait) != nil {
			return b.stopped(ctx, taskID, opts, result)
		}
	}
}

func (b *Base) stopped(parent context.Context, taskID string, opts PollOptions, result func(*media.TaskStatusResponse, string) PollResult) PollResult {
	if errors.Is(parent.Err(), context.Canceled) {
		return result(&media.TaskStatusResponse{
			Status: media.TaskFailed,
			Error:  "polling canceled",
		}, "canceled")
	}
	return result(&media.TaskStatusResponse{
		Status:   media.TaskFailed,
		Error:    media.NewPollingTimeoutError(taskID, opts.MaxDuration).Message,
		TimedOut: true,
	}, "timeout")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
