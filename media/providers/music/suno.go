package music

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// SunoName is the registry name of the Suno adapter.
const SunoName = "SunoAdapter"

const (
	sunoDefaultEndpoint = "https://api.sunoapi.com/v1"
	sunoDefaultModel    = "suno-v5"
)

// SunoParams are the parameters accepted by SunoAdapter.
type SunoParams struct {
	Style        string `json:"style,omitempty"`
	Title        string `json:"title,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty"`
	Duration     int    `json:"duration,omitempty" validate:"omitempty,gte=10,lte=480"`
}

type sunoRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style,omitempty"`
	Title        string `json:"title,omitempty"`
	Model        string `json:"model,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty"`
	Duration     int    `json:"duration,omitempty"`
}

type sunoTrack struct {
	ID       string  `json:"id"`
	AudioURL string  `json:"audio_url"`
	Duration float64 `json:"duration"`
	Title    string  `json:"title"`
}

type sunoResponse struct {
	TaskID  string      `json:"task_id"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    []sunoTrack `json:"data"`
}

// SunoAdapter creates Suno songs. A request usually yields two tracks.
type SunoAdapter struct {
	b *base.Base
}

// NewSuno builds a SunoAdapter.
func NewSuno(cfg media.ProviderConfig, deps base.Deps) *SunoAdapter {
	return &SunoAdapter{b: base.New(SunoName, cfg, deps,
		base.WithValidator(base.ParamSchema(func() SunoParams { return SunoParams{} })),
		base.WithPollDefaults(base.PollOptions{Interval: 5 * time.Second}),
	)}
}

func (a *SunoAdapter) Name() string { return SunoName }

// ParamsSchema describes SunoParams.
func (a *SunoAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *SunoAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *SunoAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *SunoAdapter) output() base.TaskOutput {
	return base.TaskOutput{MediaType: media.MediaAudio, ContentType: "audio/mpeg"}
}

func (a *SunoAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[SunoParams](req)
	if err != nil {
		return nil, err
	}

	var resp sunoResponse
	err = a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(sunoDefaultEndpoint) + "/suno/create",
		Headers: a.b.BearerHeaders(),
		Body: sunoRequest{
			Prompt:       req.Prompt,
			Style:        p.Style,
			Title:        p.Title,
			Model:        a.b.Model(sunoDefaultModel),
			Instrumental: p.Instrumental,
			Duration:     p.Duration,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	// 部分网关直接返回完成结果
	if st := toTaskStatus(&resp); st.Status != media.TaskProcessing && resp.TaskID != "" && !req.BoolParam(base.ParamAsync) {
		return a.b.Complete(ctx, resp.TaskID, st, a.output())
	}
	return a.b.AwaitTask(ctx, req, a, resp.TaskID, a.output())
}

// CheckTaskStatus implements media.TaskChecker.
func (a *SunoAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	id, err := base.PathID(taskID)
	if err != nil {
		return nil, err
	}
	var resp sunoResponse
	err = a.b.DoJSON(ctx, base.Request{
		Method:  http.MethodGet,
		URL:     a.b.Endpoint(sunoDefaultEndpoint) + "/suno/task/" + id,
		Headers: a.b.BearerHeaders(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return toTaskStatus(&resp), nil
}

func toTaskStatus(resp *sunoResponse) *media.TaskStatusResponse {
	st := &media.TaskStatusResponse{}
	switch strings.ToLower(resp.Status) {
	case "complete":
		st.Status = media.TaskSucceeded
	case "streaming":
		// 流式音频可播放但还不是最终文件
		st.Status = media.TaskProcessing
	default:
		st.Status = base.NormalizeStatus(resp.Status)
	}
	switch st.Status {
	case media.TaskSucceeded:
		for _, d := range resp.Data {
			if d.AudioURL != "" {
				st.Output = append(st.Output, d.AudioURL)
			}
		}
	case media.TaskFailed:
		st.Error = resp.Message
	}
	return st
}
