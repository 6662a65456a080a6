package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport 为每次 provider 调用输出结构化日志。
// 请求体与认证头永不落日志。
type LoggingTransport struct {
	Base    http.RoundTripper
	Headers map[string]string
	Logger  *zap.Logger
	Observe func(host string, status int, elapsed time.Duration)
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.Headers) > 0 {
		req = req.Clone(req.Context())
		for k, v := range t.Headers {
			if req.Header.Get(k) == "" {
				req.Header.Set(k, v)
			}
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if t.Observe != nil {
		t.Observe(req.URL.Host, status, elapsed)
	}

	if t.Logger != nil {
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Duration("latency", elapsed),
		}
		switch {
		case err != nil:
			t.Logger.Warn("provider request failed", append(fields, zap.Error(err))...)
		case status >= 400:
			t.Logger.Warn("provider request", append(fields, zap.Int("status", status))...)
		default:
			t.Logger.Debug("provider request", append(fields, zap.Int("status", status))...)
		}
	}

	return resp, err
}
