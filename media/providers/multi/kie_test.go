package multi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/testutil"
	"github.com/BaSui01/mediagen/testutil/fixtures"
	"github.com/BaSui01/mediagen/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kieServer struct {
	*httptest.Server
	body   map[string]any
	checks atomic.Int64
}

func newKieServer(t *testing.T, submitPath, checkPath string, records ...string) *kieServer {
	t.Helper()
	ks := &kieServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+submitPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ks.body))
		_, _ = w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"kie-1"}}`))
	})
	mux.HandleFunc("GET "+checkPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kie-1", r.URL.Query().Get("taskId"))
		n := int(ks.checks.Add(1)) - 1
		if n >= len(records) {
			n = len(records) - 1
		}
		_, _ = w.Write([]byte(records[n]))
	})
	ks.Server = httptest.NewServer(mux)
	t.Cleanup(ks.Close)
	return ks
}

func newJobsServer(t *testing.T, records ...string) *kieServer {
	return newKieServer(t, "/api/v1/jobs/createTask", "/api/v1/jobs/recordInfo", records...)
}

func TestKie_StatusCheckReportsProgress(t *testing.T) {
	srv := newJobsServer(t, `{"status":"GENERATING","progress":"0.42"}`)
	deps, _ := testDeps()

	st, err := NewKie(fixtures.ProviderConfig(KieName, srv.URL), deps).CheckTaskStatus(context.Background(), "kie-1")

	require.NoError(t, err)
	assert.Equal(t, media.TaskProcessing, st.Status)
	require.NotNil(t, st.Progress)
	assert.InDelta(t, 0.42, *st.Progress, 1e-9)
}

func TestKie_SuccessIsOffloaded(t *testing.T) {
	ms := fixtures.NewMediaServer(t)
	original := ms.URL + "/image.png"
	srv := newJobsServer(t,
		`{"code":200,"msg":"success","data":{"taskId":"kie-1","state":"generating","progress":30}}`,
		`{"status":"SUCCESS","resultUrls":["`+original+`"]}`,
	)
	deps, store := testDeps()

	req := fixtures.Request("a lighthouse")
	req.InputImages = []string{"https://ref.test/1.png", "https://ref.test/2.png"}
	req.Parameters = map[string]any{"aspectRatio": "3:2", "input": map[string]any{"output_format": "png"}}
	resp := NewKie(fixtures.OffloadConfig(KieName, srv.URL), deps).Dispatch(context.Background(), req)

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	require.Len(t, resp.Results, 1)
	assert.NotEqual(t, original, resp.Results[0].URL)
	assert.True(t, strings.HasPrefix(resp.Results[0].URL, fixtures.StorageBaseURL+"/tests/"))
	assert.Len(t, store.Keys(), 1)

	input, ok := srv.body["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a lighthouse", input["prompt"])
	assert.Equal(t, []any{"https://ref.test/1.png", "https://ref.test/2.png"}, input["image_urls"])
	assert.Equal(t, "3:2", input["aspect_ratio"])
	assert.Equal(t, "png", input["output_format"])
	assert.Equal(t, "KieAdapter-model", srv.body["model"])
}

func TestKie_ResultJSONAndFailures(t *testing.T) {
	tests := []struct {
		name   string
		record string
		status media.TaskState
		output []string
		errMsg string
	}{
		{
			name:   "result json",
			record: `{"code":200,"data":{"state":"success","resultJson":"{\"resultUrls\":[\"https://k/1.png\"]}"}}`,
			status: media.TaskSucceeded,
			output: []string{"https://k/1.png"},
		},
		{
			name:   "fail state",
			record: `{"code":200,"data":{"state":"fail","failMsg":"nsfw"}}`,
			status: media.TaskFailed,
			errMsg: "nsfw",
		},
		{
			name:   "success flag",
			record: `{"code":200,"data":{"successFlag":1,"response":{"resultUrls":["https://k/v.mp4"]}}}`,
			status: media.TaskSucceeded,
			output: []string{"https://k/v.mp4"},
		},
		{
			name:   "failed success flag",
			record: `{"code":200,"data":{"successFlag":3,"errorMessage":"timeout upstream"}}`,
			status: media.TaskFailed,
			errMsg: "timeout upstream",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newJobsServer(t, tt.record)
			deps, _ := testDeps()

			st, err := NewKie(fixtures.ProviderConfig(KieName, srv.URL), deps).CheckTaskStatus(context.Background(), "kie-1")

			require.NoError(t, err)
			assert.Equal(t, tt.status, st.Status)
			assert.Equal(t, tt.output, st.Output)
			assert.Equal(t, tt.errMsg, st.Error)
		})
	}
}

func TestKie_ProductFlavor(t *testing.T) {
	srv := newKieServer(t, "/api/v1/veo/generate", "/api/v1/veo/record-info",
		`{"code":200,"data":{"successFlag":1,"response":{"resultUrls":["https://k/v.mp4"]}}}`)
	deps, _ := testDeps()
	cfg := fixtures.ProviderConfig(KieName, srv.URL)
	cfg.APIFlavor = "veo"

	req := fixtures.Request("sunset")
	req.InputImages = []string{"https://ref.test/f.png"}
	req.Parameters = map[string]any{"mediaType": "video"}
	resp := NewKie(cfg, deps).Dispatch(context.Background(), req)

	require.Equal(t, media.StatusSuccess, resp.Status, resp.Message)
	assert.Equal(t, media.MediaVideo, resp.Results[0].Type)
	assert.Equal(t, "https://ref.test/f.png sunset", srv.body["prompt"])

	resumed := NewKie(cfg, deps).Resume(context.Background(), "kie-1")
	require.Equal(t, media.StatusSuccess, resumed.Status, resumed.Message)
	assert.Equal(t, media.MediaVideo, resumed.Results[0].Type)
}

func TestKie_EnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":402,"msg":"Insufficient credits"}`))
	}))
	t.Cleanup(srv.Close)
	deps, _ := testDeps()

	resp := NewKie(fixtures.ProviderConfig(KieName, srv.URL), deps).Dispatch(context.Background(), fixtures.Request("x"))

	testutil.AssertErrorCode(t, resp, string(types.ErrProviderError))
	assert.Equal(t, "Insufficient credits", resp.Message)
	assert.False(t, resp.Error.IsRetryable)
}

func TestKie_EnvelopeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":429,"msg":"slow down"}`))
	}))
	t.Cleanup(srv.Close)
	deps, _ := testDeps()

	resp := NewKie(fixtures.ProviderConfig(KieName, srv.URL), deps).Dispatch(context.Background(), fixtures.Request("x"))

	testutil.AssertErrorCode(t, resp, string(types.ErrProviderError))
	assert.True(t, resp.Error.IsRetryable)
}

func TestGuessMediaType(t *testing.T) {
	assert.Equal(t, media.MediaVideo, guessMediaType([]string{"https://x/a.MP4?sig=1"}))
	assert.Equal(t, media.MediaAudio, guessMediaType([]string{"https://x/a.wav"}))
	assert.Equal(t, media.MediaImage, guessMediaType([]string{"https://x/a"}))
	assert.Equal(t, media.MediaImage, guessMediaType(nil))
}
