package base

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DispatchFunc does the provider-specific part of a dispatch. It receives the
// validated, normalized request.
type DispatchFunc func(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error)

type instruments struct {
	dispatches metric.Int64Counter
	latency    metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     instruments
)

func otelInstruments() instruments {
	instOnce.Do(func() {
		meter := otel.Meter(tracerName)
		inst.dispatches, _ = meter.Int64Counter("mediagen.adapter.dispatches",
			metric.WithDescription("adapter operations by outcome"))
		inst.latency, _ = meter.Float64Histogram("mediagen.adapter.duration",
			metric.WithUnit("s"),
			metric.WithDescription("adapter operation latency"))
	})
	return inst
}

// Run validates req and executes fn. It is the only way adapters should
// implement Dispatch: every error and panic becomes an ERROR response.
func (b *Base) Run(ctx context.Context, req *media.UnifiedGenerationRequest, fn DispatchFunc) *media.AdapterResponse {
	return b.Guard(ctx, "dispatch", func(ctx context.Context) (*media.AdapterResponse, error) {
		if req == nil {
			return nil, media.NewInvalidRequestError("request is required")
		}
		normalized, err := b.validator.Validate(req)
		if err != nil {
			return nil, err
		}
		if normalized.SessionID != "" {
			ctx = types.WithSessionID(ctx, normalized.SessionID)
		}
		return fn(ctx, normalized)
	})
}

// Guard wraps an adapter operation with tracing, metrics, panic recovery and
// error mapping. op names the operation in spans and logs.
func (b *Base) Guard(ctx context.Context, op string, fn func(ctx context.Context) (*media.AdapterResponse, error)) (resp *media.AdapterResponse) {
	start := b.now()
	ctx = types.WithAdapter(ctx, b.name)
	ctx, span := b.tracer.Start(ctx, "adapter."+op, trace.WithAttributes(
		attribute.String("mediagen.adapter", b.name),
		attribute.String("mediagen.model", b.cfg.ModelIdentifier),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("adapter panic", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
			resp = b.fail(ctx, span, types.NewError(types.ErrInternalError, fmt.Sprintf("adapter panic: %v", r)))
		}
		b.observe(ctx, span, op, resp, b.now().Sub(start))
	}()

	out, err := fn(ctx)
	if err != nil {
		return b.fail(ctx, span, err)
	}
	if out == nil {
		return b.fail(ctx, span, types.NewError(types.ErrInternalError, "adapter returned no response"))
	}
	return out
}

func (b *Base) fail(ctx context.Context, span trace.Span, err error) *media.AdapterResponse {
	e := media.Classify(err)
	if e.Provider == "" && e.Code == types.ErrProviderError {
		e.Provider = b.name
	}

	fields := []zap.Field{
		zap.String("code", string(e.Code)),
		zap.Bool("retryable", e.Retryable),
		zap.Error(err),
	}
	if id, ok := types.TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", id))
	}
	switch e.Code {
	case types.ErrInvalidRequest, types.ErrInvalidParameters:
		b.logger.Info("request rejected", fields...)
	default:
		b.logger.Error("dispatch failed", fields...)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, e.Message)
	b.metrics.RecordError(b.name, string(e.Code))

	if b.monitor != nil && media.ShouldReport(e) {
		b.monitor.Report(ctx, b.name, e)
	}
	return media.Failed(e)
}

func (b *Base) observe(ctx context.Context, span trace.Span, op string, resp *media.AdapterResponse, elapsed time.Duration) {
	status := "UNKNOWN"
	if resp != nil {
		status = string(resp.Status)
	}
	span.SetAttributes(attribute.String("mediagen.status", status))

	attrs := metric.WithAttributes(
		attribute.String("adapter", b.name),
		attribute.String("op", op),
		attribute.String("status", status),
	)
	in := otelInstruments()
	if in.dispatches != nil {
		in.dispatches.Add(ctx, 1, attrs)
	}
	if in.latency != nil {
		in.latency.Record(ctx, elapsed.Seconds(), attrs)
	}
	b.metrics.RecordDispatch(b.name, status, elapsed)

	b.logger.Debug("adapter operation finished",
		zap.String("op", op),
		zap.String("status", status),
		zap.Duration("elapsed", elapsed),
	)
}
