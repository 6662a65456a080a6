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

func newGeminiServer(t *testing.T, respond any) (*httptest.Server, *geminiRequest) {
	t.Helper()
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(respond)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func geminiConfig(endpoint string, offload bool) media.ProviderConfig {
	cfg := fixtures.ProviderConfig(GeminiName, endpoint)
	if offload {
		cfg = fixtures.OffloadConfig(GeminiName, endpoint)
	}
	cfg.ModelIdentifier = "gemini-test"
	return cfg
}

func TestGeminiImage_InlineResult(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(fixtures.PNG)
	srv, got := newGeminiServer(t, map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{"parts": []map[string]any{
				{"text": "here you go"},
				{"inlineData": map[string]any{"mimeType": "image/png", "data": payload}},
			}},
		}},
	})
	deps, store := testDeps()

	req := fixtures.Request("a kite")
	req.InputImages = []string{"data:image/jpeg;base64,AAAA", "https://ref.test/b.png"}
	req.Parameters = map[string]any{"aspectRatio": "5:4"}

	resp := NewGeminiImage(geminiConfig(srv.URL, true), deps).Dispatch(context.Background(), req)

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	require.Len(t, resp.Results, 1)
	assert.Len(t, store.Keys(), 1)

	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
	assert.Equal(t, "AAAA", parts[0].InlineData.Data)
	assert.Equal(t, "https://ref.test/b.png a kite", parts[1].Text)
	assert.Equal(t, []string{"IMAGE"}, got.GenerationConfig.ResponseModalities)
	assert.Equal(t, "5:4", got.GenerationConfig.ImageConfig.AspectRatio)
}

func TestGeminiImage_RequiresOffload(t *testing.T) {
	deps, _ := testDeps()
	resp := NewGeminiImage(geminiConfig("http://127.0.0.1:1", false), deps).
		Dispatch(context.Background(), fixtures.Request("x"))
	testutil.AssertErrorCode(t, resp, string(types.ErrConfiguration))
}

func TestGeminiImage_TextOnlyResponse(t *testing.T) {
	srv, _ := newGeminiServer(t, map[string]any{
		"candidates": []map[string]any{{
			"finishReason": "STOP",
			"content":      map[string]any{"parts": []map[string]any{{"text": "I can't draw that."}}},
		}},
	})
	deps, _ := testDeps()

	resp := NewGeminiImage(geminiConfig(srv.URL, true), deps).Dispatch(context.Background(), fixtures.Request("x"))

	testutil.AssertErrorCode(t, resp, string(types.ErrProviderError))
	assert.Equal(t, "I can't draw that.", resp.Message)
}

func TestGeminiImage_Blocked(t *testing.T) {
	srv, _ := newGeminiServer(t, map[string]any{"promptFeedback": map[string]any{"blockReason": "SAFETY"}})
	deps, _ := testDeps()

	resp := NewGeminiImage(geminiConfig(srv.URL, true), deps).Dispatch(context.Background(), fixtures.Request("x"))

	testutil.AssertErrorCode(t, resp, string(types.ErrProviderError))
	assert.Contains(t, resp.Message, "SAFETY")
}

func TestSplitDataURI(t *testing.T) {
	data, ct, err := splitDataURI("data:image/webp;base64,QUJD")
	require.NoError(t, err)
	assert.Equal(t, "QUJD", data)
	assert.Equal(t, "image/webp", ct)

	_, _, err = splitDataURI("data:image/png;base64")
	assert.Error(t, err)
}
