package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/BaSui01/mediagen/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		retryable bool
		reason    string
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", false, "unauthorized"},
		{"forbidden", http.StatusForbidden, "nope", false, "forbidden"},
		{"rate limited", http.StatusTooManyRequests, "slow down", true, "rate_limited"},
		{"quota", http.StatusBadRequest, "insufficient credit", false, "quota_exceeded"},
		{"bad request", http.StatusBadRequest, "prompt too long", false, "bad_request"},
		{"internal", http.StatusInternalServerError, "boom", true, "upstream"},
		{"gateway", http.StatusBadGateway, "bad gateway", true, "upstream"},
		{"overloaded", 529, "busy", true, "overloaded"},
		{"not found", http.StatusNotFound, "missing", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := MapHTTPError(tt.status, tt.msg, "flux")
			assert.Equal(t, types.ErrProviderError, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, "flux", e.Provider)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, e.Details["reason"])
			}
		})
	}
}

func TestMapHTTPError_EmptyMessage(t *testing.T) {
	e := MapHTTPError(http.StatusServiceUnavailable, "", "suno")
	assert.Equal(t, "Service Unavailable", e.Message)
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai style", `{"error":{"message":"bad prompt","type":"invalid_request_error"}}`, "bad prompt (type: invalid_request_error)"},
		{"string error", `{"error":"quota exceeded"}`, "quota exceeded"},
		{"message", `{"message":"model not found"}`, "model not found"},
		{"msg", `{"code":400,"msg":"invalid size"}`, "invalid size"},
		{"detail", `{"detail":"Not authenticated"}`, "Not authenticated"},
		{"plain", "upstream exploded", "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadErrorMessage([]byte(tt.body)))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Run("typed passes through", func(t *testing.T) {
		in := NewInvalidRequestError("prompt is required")
		assert.Same(t, in, Classify(fmt.Errorf("wrap: %w", in)))
	})

	t.Run("deadline", func(t *testing.T) {
		e := Classify(&url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded})
		assert.Equal(t, types.ErrNetworkError, e.Code)
		assert.True(t, e.Retryable)
	})

	t.Run("canceled", func(t *testing.T) {
		e := Classify(context.Canceled)
		assert.Equal(t, types.ErrNetworkError, e.Code)
		assert.False(t, e.Retryable)
	})

	t.Run("url error", func(t *testing.T) {
		e := Classify(&url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")})
		assert.Equal(t, types.ErrNetworkError, e.Code)
		assert.True(t, e.Retryable)
	})

	t.Run("schema drift", func(t *testing.T) {
		var out struct {
			ID int `json:"id"`
		}
		err := json.Unmarshal([]byte(`{"id":"abc"}`), &out)
		require.Error(t, err)
		e := Classify(err)
		assert.Equal(t, types.ErrProviderError, e.Code)
		assert.False(t, e.Retryable)
	})

	t.Run("unknown adapter", func(t *testing.T) {
		e := Classify(NewUnknownAdapterError("Nope", []string{"B", "A"}))
		assert.Equal(t, types.ErrUnknownAdapter, e.Code)
		assert.Equal(t, []string{"A", "B"}, e.Details["knownAdapters"])
	})

	t.Run("anything else", func(t *testing.T) {
		e := Classify(errors.New("nil map"))
		assert.Equal(t, types.ErrInternalError, e.Code)
		assert.True(t, ShouldReport(e))
	})

	assert.Nil(t, Classify(nil))
}

func TestFailed_NeverCarriesResults(t *testing.T) {
	resp := Failed(NewInvalidParametersError([]string{"width: must be >= 64"}))

	assert.Equal(t, StatusError, resp.Status)
	assert.Empty(t, resp.Results)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETERS", resp.Error.Code)
	assert.False(t, resp.Error.IsRetryable)
	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"width: must be >= 64"}, details["fields"])
}

func TestPollingTimeoutError(t *testing.T) {
	e := NewPollingTimeoutError("task-1", 2*time.Second)
	assert.Equal(t, types.ErrPollingTimeout, e.Code)
	assert.False(t, e.Retryable)
	assert.Contains(t, e.Message, "task-1")
}

func TestUnknownAdapterError_ListsSortedNames(t *testing.T) {
	err := NewUnknownAdapterError("Foo", []string{"SunoAdapter", "FluxAdapter"})
	assert.Equal(t, `unknown adapter "Foo" (known adapters: FluxAdapter, SunoAdapter)`, err.Error())
}

func TestPollingUnsupported(t *testing.T) {
	_, err := PollingUnsupported{AdapterName: "OpenAIImageAdapter"}.CheckTaskStatus(context.Background(), "x")
	assert.True(t, types.IsErrorCode(err, types.ErrPollingNotSupported))
}
