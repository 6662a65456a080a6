package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/testutil"
	"github.com/BaSui01/mediagen/testutil/fixtures"
	"github.com/BaSui01/mediagen/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, status int, respond func(body map[string]any) any) (*httptest.Server, *map[string]any) {
	t.Helper()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(respond(got))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestOpenAIImage_URLResults(t *testing.T) {
	ms := fixtures.NewMediaServer(t)
	srv, got := newOpenAIServer(t, http.StatusOK, func(map[string]any) any {
		return map[string]any{"data": []map[string]any{
			{"url": ms.URL + "/image.png", "revised_prompt": "a calm lake at dawn"},
			{"url": ms.URL + "/image.png"},
		}}
	})
	deps, store := testDeps()
	cfg := fixtures.OffloadConfig(OpenAIName, srv.URL)
	cfg.ModelIdentifier = "dall-e-3"

	req := fixtures.Request("lake")
	req.NumberOfOutputs = 2
	req.InputImages = []string{"https://ref.test/a.png"}
	req.Parameters = map[string]any{"size": "16:9", "quality": "hd"}

	resp := NewOpenAIImage(cfg, deps).Dispatch(context.Background(), req)

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "a calm lake at dawn", resp.Results[0].Metadata["revisedPrompt"])
	assert.Nil(t, resp.Results[1].Metadata)
	assert.Len(t, store.Keys(), 2)

	assert.Equal(t, "1792x1024", (*got)["size"])
	assert.Equal(t, "url", (*got)["response_format"])
	assert.EqualValues(t, 2, (*got)["n"])
	assert.Equal(t, "https://ref.test/a.png lake", (*got)["prompt"])
}

func TestOpenAIImage_GPTImageBase64(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(fixtures.PNG)
	srv, got := newOpenAIServer(t, http.StatusOK, func(map[string]any) any {
		return map[string]any{"data": []map[string]any{{"b64_json": payload}}}
	})
	deps, store := testDeps()
	cfg := fixtures.OffloadConfig(OpenAIName, srv.URL)
	cfg.ModelIdentifier = "gpt-image-1"

	req := fixtures.Request("logo")
	req.Parameters = map[string]any{"size": "portrait"}
	resp := NewOpenAIImage(cfg, deps).Dispatch(context.Background(), req)

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	assert.Equal(t, "1024x1536", (*got)["size"])
	_, hasFormat := (*got)["response_format"]
	assert.False(t, hasFormat)

	keys := store.Keys()
	require.Len(t, keys, 1)
	obj, ok := store.Get(keys[0])
	require.True(t, ok)
	assert.Equal(t, fixtures.PNG, obj.Data)
}

func TestOpenAIImage_Base64WithoutOffload(t *testing.T) {
	srv, _ := newOpenAIServer(t, http.StatusOK, func(map[string]any) any {
		return map[string]any{"data": []map[string]any{{"b64_json": "aGVsbG8="}}}
	})
	deps, _ := testDeps()
	cfg := fixtures.ProviderConfig(OpenAIName, srv.URL)
	cfg.ModelIdentifier = "gpt-image-1"

	resp := NewOpenAIImage(cfg, deps).Dispatch(context.Background(), fixtures.Request("x"))
	testutil.AssertErrorCode(t, resp, string(types.ErrConfiguration))
}

func TestOpenAIImage_ProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"rate limited", http.StatusTooManyRequests, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newOpenAIServer(t, tt.status, func(map[string]any) any {
				return map[string]any{"error": map[string]any{"message": "nope", "type": "invalid_request_error"}}
			})
			deps, _ := testDeps()
			deps.RetryPolicy.MaxRetries = 0

			resp := NewOpenAIImage(fixtures.ProviderConfig(OpenAIName, srv.URL), deps).
				Dispatch(context.Background(), fixtures.Request("x"))

			testutil.AssertErrorCode(t, resp, string(types.ErrProviderError))
			assert.Equal(t, tt.retryable, resp.Error.IsRetryable)
			assert.Contains(t, resp.Message, "nope")
		})
	}
}

func TestOpenAIImage_TooManyOutputs(t *testing.T) {
	deps, _ := testDeps()
	req := fixtures.Request("x")
	req.NumberOfOutputs = 11
	resp := NewOpenAIImage(fixtures.ProviderConfig(OpenAIName, ""), deps).Dispatch(context.Background(), req)
	testutil.AssertErrorCode(t, resp, string(types.ErrInvalidParameters))
}

func TestOpenAIImage_CheckTaskStatusUnsupported(t *testing.T) {
	deps, _ := testDeps()
	_, err := NewOpenAIImage(fixtures.ProviderConfig(OpenAIName, ""), deps).CheckTaskStatus(context.Background(), "t")
	assert.True(t, types.IsErrorCode(err, types.ErrPollingNotSupported))
}
