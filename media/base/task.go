package base

import (
	"context"
	"strings"

	"github.com/BaSui01/mediagen/media"
	"go.uber.org/zap"
)

// TaskOutput describes how a finished task's output is turned into results.
type TaskOutput struct {
	MediaType   media.MediaType
	ContentType string
	// Base64 marks outputs as inline payloads instead of URLs.
	Base64 bool
}

// AwaitTask finishes an async dispatch: with the async parameter set it
// returns PROCESSING right away, otherwise it polls and completes the task.
func (b *Base) AwaitTask(ctx context.Context, req *media.UnifiedGenerationRequest, checker media.TaskChecker, taskID string, out TaskOutput) (*media.AdapterResponse, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, media.NewProviderError(b.name, "provider did not return a task id", false)
	}
	if req.BoolParam(ParamAsync) {
		b.logger.Info("task submitted", zap.String("task_id", taskID))
		return media.Processing(taskID, media.Progress(0)), nil
	}
	opts := b.PollOptionsFor(req)
	res := b.PollTaskUntilComplete(ctx, checker, taskID, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.Status != nil && res.Status.TimedOut {
		return nil, media.NewPollingTimeoutError(taskID, opts.MaxDuration).
			WithProvider(b.name).
			WithDetail("attempts", res.Attempts)
	}
	return b.Complete(ctx, taskID, res.Status, out)
}

// Complete converts one task observation into a response. Terminal
// successes are offloaded, failures become errors, anything else is
// reported as PROCESSING.
func (b *Base) Complete(ctx context.Context, taskID string, st *media.TaskStatusResponse, out TaskOutput) (*media.AdapterResponse, error) {
	if st == nil {
		return nil, media.NewProviderError(b.name, "empty task status", true)
	}
	switch st.Status {
	case media.TaskSucceeded:
		if len(st.Output) == 0 {
			return nil, media.NewProviderError(b.name, "task succeeded without output", false).
				WithDetail("taskId", taskID)
		}
		var (
			results []media.GenerationResult
			err     error
		)
		if out.Base64 {
			results, err = b.OffloadBase64Results(ctx, st.Output, out.MediaType, out.ContentType)
		} else {
			results, err = b.OffloadResults(ctx, st.Output, out.MediaType, out.ContentType)
		}
		if err != nil {
			return nil, err
		}
		for i := range results {
			results[i].Metadata = map[string]any{"taskId": taskID}
		}
		resp := media.Succeeded(results...)
		resp.TaskID = taskID
		return resp, nil

	case media.TaskFailed:
		if st.TimedOut {
			opts := b.PollOptionsFor(nil)
			return nil, media.NewPollingTimeoutError(taskID, opts.MaxDuration).WithProvider(b.name)
		}
		msg := st.Error
		if msg == "" {
			msg = "task failed"
		}
		return nil, media.NewProviderError(b.name, msg, false).WithDetail("taskId", taskID)

	default:
		return media.Processing(taskID, st.Progress), nil
	}
}

// ResumeTask performs one status check for taskID and completes it.
func (b *Base) ResumeTask(ctx context.Context, checker media.TaskChecker, taskID string, out TaskOutput) *media.AdapterResponse {
	return b.Guard(ctx, "resume", func(ctx context.Context) (*media.AdapterResponse, error) {
		if strings.TrimSpace(taskID) == "" {
			return nil, media.NewInvalidRequestError("task id is required")
		}
		st, err := checker.CheckTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		return b.Complete(ctx, taskID, st, out)
	})
}
