// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record* 方法在 nil 接收者上是空操作，
// 因此调用方无需判断是否启用了指标。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 调度指标
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	faultReports     *prometheus.CounterVec

	// 轮询指标
	pollAttempts *prometheus.HistogramVec

	// 转存指标
	offloadTotal    *prometheus.CounterVec
	offloadDuration *prometheus.HistogramVec

	// provider 出站调用
	providerRequests *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器；reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.dispatchTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of adapter dispatches by outcome",
		},
		[]string{"adapter", "status"},
	)

	c.dispatchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Adapter dispatch duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"adapter"},
	)

	c.errorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Dispatch errors by classified code",
		},
		[]string{"adapter", "code"},
	)

	c.faultReports = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fault_reports_total",
			Help:      "Provider and internal faults handed to the error monitor",
		},
		[]string{"adapter", "code"},
	)

	c.pollAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_attempts",
			Help:      "Status checks per polling loop",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50, 100},
		},
		[]string{"adapter", "outcome"},
	)

	c.offloadTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offload_total",
			Help:      "Media offload operations by result",
		},
		[]string{"status"},
	)

	c.offloadDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "offload_duration_seconds",
			Help:      "Download plus upload duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	c.providerRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound provider HTTP requests",
		},
		[]string{"host", "status"},
	)

	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🎬 调度指标记录
// =============================================================================

// RecordDispatch 记录一次 Dispatch 的结果
func (c *Collector) RecordDispatch(adapter, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.dispatchTotal.WithLabelValues(adapter, status).Inc()
	c.dispatchDuration.WithLabelValues(adapter).Observe(duration.Seconds())
}

// RecordError 记录归类后的错误码
func (c *Collector) RecordError(adapter, code string) {
	if c == nil {
		return
	}
	c.errorsTotal.WithLabelValues(adapter, code).Inc()
}

// RecordFaultReport 记录上报给错误监控的故障
func (c *Collector) RecordFaultReport(adapter, code string) {
	if c == nil {
		return
	}
	c.faultReports.WithLabelValues(adapter, code).Inc()
}

// RecordPoll 记录一次完整轮询循环的检查次数
func (c *Collector) RecordPoll(adapter, outcome string, attempts int) {
	if c == nil {
		return
	}
	c.pollAttempts.WithLabelValues(adapter, outcome).Observe(float64(attempts))
}

// RecordOffload 记录转存
func (c *Collector) RecordOffload(kind, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.offloadTotal.WithLabelValues(status).Inc()
	c.offloadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordProviderRequest 记录出站 provider 调用；可直接作为 httpclient.Options.Observe
func (c *Collector) RecordProviderRequest(host string, status int, _ time.Duration) {
	if c == nil {
		return
	}
	c.providerRequests.WithLabelValues(host, statusCode(status)).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "error"
	}
}
