package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultTLSConfig(t *testing.T) {
	cfg := DefaultTLSConfig()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.NotEmpty(t, cfg.CipherSuites)
}

func TestSecureTransport(t *testing.T) {
	tr := SecureTransport()
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.ForceAttemptHTTP2)
}

func TestNew_DefaultHeadersAndObserve(t *testing.T) {
	var gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.DebugLevel)
	var observed []int
	client := New(Options{
		Timeout: 5 * time.Second,
		Headers: map[string]string{"User-Agent": "mediagen/1.0", "X-Custom": "default"},
		Logger:  zap.New(core),
		Base:    srv.Client().Transport,
		Observe: func(_ string, status int, _ time.Duration) { observed = append(observed, status) },
	})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/x", nil)
	require.NoError(t, err)
	req.Header.Set("X-Custom", "explicit")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "mediagen/1.0", gotUA)
	assert.Equal(t, "explicit", gotCustom, "request header wins over default")
	assert.Equal(t, []int{http.StatusTeapot}, observed)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "provider request", logs.All()[0].Message)
	assert.Equal(t, "/v1/x", logs.All()[0].ContextMap()["path"])
}

func TestWithTimeout(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultTimeout, c.Timeout)

	long := WithTimeout(c, 10*time.Minute)
	assert.Equal(t, 10*time.Minute, long.Timeout)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Same(t, c.Transport, long.Transport)
}
