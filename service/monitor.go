package service

import (
	"context"

	"github.com/BaSui01/mediagen/internal/metrics"
	"github.com/BaSui01/mediagen/types"
	"go.uber.org/zap"
)

// LogMonitor is the default media.ErrorMonitor: it logs the fault and
// counts it.
type LogMonitor struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewLogMonitor creates a monitor. Both arguments may be nil.
func NewLogMonitor(logger *zap.Logger, m *metrics.Collector) *LogMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMonitor{logger: logger.With(zap.String("component", "error_monitor")), metrics: m}
}

// Report 记录一次 provider / 内部故障
func (m *LogMonitor) Report(ctx context.Context, adapter string, err *types.Error) {
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("adapter", adapter),
		zap.String("code", string(err.Code)),
		zap.String("message", err.Message),
		zap.Bool("retryable", err.Retryable),
	}
	if err.Provider != "" {
		fields = append(fields, zap.String("provider", err.Provider))
	}
	if err.HTTPStatus != 0 {
		fields = append(fields, zap.Int("http_status", err.HTTPStatus))
	}
	if len(err.Details) > 0 {
		fields = append(fields, zap.Any("details", err.Details))
	}
	if id, ok := types.TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", id))
	}
	if err.Cause != nil {
		fields = append(fields, zap.NamedError("cause", err.Cause))
	}
	m.logger.Warn("provider fault", fields...)
	m.metrics.RecordFaultReport(adapter, string(err.Code))
}
