package base

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/testutil"
	"github.com/BaSui01/mediagen/testutil/fixtures"
	"github.com/BaSui01/mediagen/testutil/mocks"
	"github.com/BaSui01/mediagen/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitTask_AsyncReturnsProcessing(t *testing.T) {
	b := newTestBase(fixtures.ProviderConfig("test", ""), Deps{})
	checker := mocks.NewScriptedChecker(mocks.Succeeded("u"))
	req := &media.UnifiedGenerationRequest{Prompt: "x", Parameters: map[string]any{ParamAsync: true}}

	resp, err := b.AwaitTask(context.Background(), req, checker, "task-9", TaskOutput{MediaType: media.MediaVideo})
	require.NoError(t, err)
	assert.Equal(t, media.StatusProcessing, resp.Status)
	assert.Equal(t, "task-9", resp.TaskID)
	assert.Zero(t, checker.Calls())
}

func TestAwaitTask_MissingTaskID(t *testing.T) {
	b := newTestBase(fixtures.ProviderConfig("test", ""), Deps{})
	_, err := b.AwaitTask(context.Background(), fixtures.Request("x"), mocks.NewScriptedChecker(), "", TaskOutput{})
	assert.True(t, types.IsErrorCode(err, types.ErrProviderError))
}

func TestAwaitTask_PollsAndOffloads(t *testing.T) {
	srv := fixtures.NewMediaServer(t)
	svc, _ := fixtures.NewMemoryStorage()
	b := newTestBase(fixtures.OffloadConfig("test", ""), Deps{Storage: svc})
	withFakeClock(b)

	checker := mocks.NewScriptedChecker(mocks.Pending(), mocks.Succeeded(srv.URL+"/video.mp4"))
	resp, err := b.AwaitTask(context.Background(), fixtures.Request("x"), checker, "t1", TaskOutput{MediaType: media.MediaVideo})
	require.NoError(t, err)

	require.Equal(t, media.StatusSuccess, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, media.MediaVideo, resp.Results[0].Type)
	assert.True(t, strings.HasPrefix(resp.Results[0].URL, fixtures.StorageBaseURL+"/tests/"))
	assert.Equal(t, "t1", resp.Results[0].Metadata["taskId"])
}

func TestAwaitTask_TimeoutMapsToPollingTimeout(t *testing.T) {
	b := newTestBase(fixtures.ProviderConfig("test", ""), Deps{
		Poll: PollOptions{MaxDuration: 30 * time.Second, Interval: 10 * time.Second},
	})
	withFakeClock(b)

	_, err := b.AwaitTask(context.Background(), fixtures.Request("x"), mocks.NewScriptedChecker(mocks.Pending()), "t2", TaskOutput{})
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrPollingTimeout, e.Code)
	assert.Equal(t, "t2", e.Details["taskId"])
	assert.Equal(t, float64(30), e.Details["maxDurationSeconds"])
}

func TestAwaitTask_ProviderFailure(t *testing.T) {
	b := newTestBase(fixtures.ProviderConfig("test", ""), Deps{})
	withFakeClock(b)

	_, err := b.AwaitTask(context.Background(), fixtures.Request("x"), mocks.NewScriptedChecker(mocks.FailedStep("content policy")), "t3", TaskOutput{})
	e, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrProviderError, e.Code)
	assert.Equal(t, "content policy", e.Message)
	assert.False(t, e.Retryable)
}

func TestComplete_SuccessWithoutOutput(t *testing.T) {
	b := newTestBase(fixtures.ProviderConfig("test", ""), Deps{})
	_, err := b.Complete(context.Background(), "t", &media.TaskStatusResponse{Status: media.TaskSucceeded}, TaskOutput{})
	assert.True(t, types.IsErrorCode(err, types.ErrProviderError))
}

func TestComplete_StorageFailureIsError(t *testing.T) {
	srv := fixtures.NewMediaServer(t)
	b := newTestBase(fixtures.OffloadConfig("test", ""), Deps{Storage: failingStorage{err: assert.AnError}})

	_, err := b.Complete(context.Background(), "t", &media.TaskStatusResponse{
		Status: media.TaskSucceeded,
		Output: []string{srv.URL + "/image.png"},
	}, TaskOutput{MediaType: media.MediaImage})
	assert.True(t, types.IsErrorCode(err, types.ErrStorageUpload))
}

func TestResumeTask(t *testing.T) {
	b := newTestBase(fixtures.ProviderConfig("test", ""), Deps{})

	progress := 0.3
	checker := mocks.NewScriptedChecker(mocks.Step{Status: &media.TaskStatusResponse{
		Status:   media.TaskProcessing,
		Progress: &progress,
	}})
	resp := b.ResumeTask(context.Background(), checker, "t4", TaskOutput{})
	assert.Equal(t, media.StatusProcessing, resp.Status)
	require.NotNil(t, resp.Progress)
	assert.InDelta(t, 0.3, *resp.Progress, 1e-9)

	resp = b.ResumeTask(context.Background(), checker, " ", TaskOutput{})
	testutil.AssertErrorCode(t, resp, string(types.ErrInvalidRequest))
}
