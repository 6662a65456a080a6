package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout 适用于同步提交类调用；长时生成调用由 adapter 自行放宽。
const DefaultTimeout = 60 * time.Second

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// SecureTransport returns an http.Transport with TLS hardening.
func SecureTransport() *http.Transport {
	return &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: DefaultTLSConfig(),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Options configures New.
type Options struct {
	Timeout time.Duration
	// Headers are added to every request unless already set.
	Headers map[string]string
	Logger  *zap.Logger
	// Base overrides the underlying transport (tests use httptest transports).
	Base http.RoundTripper
	// Observe is called after every round trip.
	Observe func(host string, status int, elapsed time.Duration)
}

// New builds a client with TLS hardening, default headers and logging.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	base := opts.Base
	if base == nil {
		base = SecureTransport()
	}
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &LoggingTransport{
			Base:    base,
			Headers: opts.Headers,
			Logger:  opts.Logger,
			Observe: opts.Observe,
		},
	}
}

// WithTimeout returns a shallow copy of c with a different timeout, sharing
// the transport and its connection pool.
func WithTimeout(c *http.Client, timeout time.Duration) *http.Client {
	cp := *c
	cp.Timeout = timeout
	return &cp
}
