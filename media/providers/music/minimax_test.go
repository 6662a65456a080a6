package music

import (
	"context"
	"encoding/hex"
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

var mp3Frame = []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}

func newMinimaxServer(t *testing.T, respond func(req minimaxRequest) any) (*httptest.Server, *minimaxRequest) {
	t.Helper()
	var got minimaxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/music_generation", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(respond(got))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestMinimaxMusic_HexOutput(t *testing.T) {
	srv, got := newMinimaxServer(t, func(minimaxRequest) any {
		return map[string]any{
			"base_resp":  map[string]any{"status_code": 0, "status_msg": "success"},
			"data":       map[string]any{"audio": hex.EncodeToString(mp3Frame), "status": 2},
			"extra_info": map[string]any{"audio_length": 30000},
		}
	})
	deps, store := testDeps()

	req := fixtures.Request("upbeat pop")
	req.Parameters = map[string]any{"outputFormat": "hex", "lyrics": "[verse]\nla la la"}
	resp := NewMinimaxMusic(fixtures.OffloadConfig(MinimaxName, srv.URL), deps).Dispatch(context.Background(), req)

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, media.MediaAudio, resp.Results[0].Type)
	assert.EqualValues(t, 30000, resp.Results[0].Metadata["durationMs"])

	keys := store.Keys()
	require.Len(t, keys, 1)
	obj, ok := store.Get(keys[0])
	require.True(t, ok)
	assert.Equal(t, mp3Frame, obj.Data)
	assert.Equal(t, "audio/mpeg", obj.ContentType)

	assert.Equal(t, "hex", got.OutputFormat)
	assert.Equal(t, 44100, got.AudioSetting.SampleRate)
	assert.Equal(t, "mp3", got.AudioSetting.Format)
}

func TestMinimaxMusic_URLOutputWithoutOffload(t *testing.T) {
	srv, _ := newMinimaxServer(t, func(minimaxRequest) any {
		return map[string]any{
			"base_resp": map[string]any{"status_code": 0},
			"data":      map[string]any{"audio": "https://cdn.minimax.test/song.mp3"},
		}
	})
	deps, store := testDeps()

	resp := NewMinimaxMusic(fixtures.ProviderConfig(MinimaxName, srv.URL), deps).Dispatch(context.Background(), fixtures.Request("x"))

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	assert.Equal(t, "https://cdn.minimax.test/song.mp3", resp.Results[0].URL)
	assert.Empty(t, store.Keys())
}

func TestMinimaxMusic_HexRequiresOffload(t *testing.T) {
	deps, _ := testDeps()
	req := fixtures.Request("x")
	req.Parameters = map[string]any{"outputFormat": "hex"}

	resp := NewMinimaxMusic(fixtures.ProviderConfig(MinimaxName, "http://127.0.0.1:1"), deps).Dispatch(context.Background(), req)
	testutil.AssertErrorCode(t, resp, string(types.ErrConfiguration))
}

func TestMinimaxMusic_BaseRespErrors(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
	}{
		{1002, true},
		{1008, false},
		{2013, false},
	}
	for _, tt := range tests {
		srv, _ := newMinimaxServer(t, func(minimaxRequest) any {
			return map[string]any{"base_resp": map[string]any{"status_code": tt.code, "status_msg": "failed"}}
		})
		deps, _ := testDeps()

		resp := NewMinimaxMusic(fixtures.ProviderConfig(MinimaxName, srv.URL), deps).Dispatch(context.Background(), fixtures.Request("x"))

		testutil.AssertErrorCode(t, resp, string(types.ErrProviderError))
		assert.Equal(t, tt.retryable, resp.Error.IsRetryable, "code %d", tt.code)
	}
}

func TestMinimaxMusic_PollingUnsupported(t *testing.T) {
	deps, _ := testDeps()
	_, err := NewMinimaxMusic(fixtures.ProviderConfig(MinimaxName, ""), deps).CheckTaskStatus(context.Background(), "x")
	assert.True(t, types.IsErrorCode(err, types.ErrPollingNotSupported))
}
