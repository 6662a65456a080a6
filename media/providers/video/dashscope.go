package video

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// DashScopeName is the registry name of the DashScope adapter.
const DashScopeName = "DashScopeAdapter"

const (
	dashScopeDefaultEndpoint = "https://dashscope.aliyuncs.com"
	dashScopeDefaultModel    = "wan2.2-t2v-plus"

	dashScopeVideoSynthesis = "/api/v1/services/aigc/video-generation/video-synthesis"
	dashScopeImage2Video    = "/api/v1/services/aigc/image2video/video-synthesis"
	dashScopeText2Image     = "/api/v1/services/aigc/text2image/image-synthesis"
)

var dashScopeVideoSizes = base.AspectRatios{
	Supported: []string{"1920*1080", "1080*1920", "1440*1440", "1632*1248", "1248*1632", "1280*720", "720*1280", "960*960", "832*480", "480*832"},
	Aliases: map[string]string{
		"16:9":      "1920*1080",
		"9:16":      "1080*1920",
		"1:1":       "1440*1440",
		"4:3":       "1632*1248",
		"3:4":       "1248*1632",
		"landscape": "1920*1080",
		"portrait":  "1080*1920",
		"square":    "1440*1440",
	},
	Default: "1920*1080",
}

var dashScopeImageSizes = base.AspectRatios{
	Supported: []string{"1024*1024", "1280*720", "720*1280", "1152*864", "864*1152", "1440*608"},
	Aliases: map[string]string{
		"1:1":       "1024*1024",
		"16:9":      "1280*720",
		"9:16":      "720*1280",
		"4:3":       "1152*864",
		"3:4":       "864*1152",
		"21:9":      "1440*608",
		"landscape": "1280*720",
		"portrait":  "720*1280",
		"square":    "1024*1024",
	},
	Default: "1024*1024",
}

// DashScopeParams are the parameters accepted by DashScopeAdapter.
type DashScopeParams struct {
	Size           string `json:"size" jsonschema:"description=W*H or W:H; snapped per model family"`
	Duration       int    `json:"duration,omitempty" validate:"omitempty,oneof=5 10"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	PromptExtend   *bool  `json:"promptExtend,omitempty"`
	Seed           *int64 `json:"seed,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
	// LastFrameURL is used by first/last frame (kf2v) models.
	LastFrameURL string `json:"lastFrameUrl,omitempty" validate:"omitempty,url"`
}

type dashScopeInput struct {
	Prompt         string `json:"prompt,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImgURL         string `json:"img_url,omitempty"`
	FirstFrameURL  string `json:"first_frame_url,omitempty"`
	LastFrameURL   string `json:"last_frame_url,omitempty"`
}

type dashScopeRequest struct {
	Model      string         `json:"model"`
	Input      dashScopeInput `json:"input"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type dashScopeResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		VideoURL   string `json:"video_url"`
		Results    []struct {
			URL     string `json:"url"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"results"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"output"`
}

// DashScopeAdapter drives DashScope (Wan) async synthesis. The endpoint
// follows the model: "-t2i" models synthesize images, "-kf2v" models take
// first and last frames, everything else is text/image to video.
type DashScopeAdapter struct {
	b *base.Base
}

// NewDashScope builds a DashScopeAdapter.
func NewDashScope(cfg media.ProviderConfig, deps base.Deps) *DashScopeAdapter {
	return &DashScopeAdapter{b: base.New(DashScopeName, cfg, deps,
		base.WithValidator(base.ParamSchema(func() DashScopeParams { return DashScopeParams{} }, base.MaxOutputs(4))),
		base.WithPollDefaults(base.PollOptions{Interval: 15 * time.Second}),
	)}
}

func (a *DashScopeAdapter) Name() string { return DashScopeName }

// ParamsSchema describes DashScopeParams.
func (a *DashScopeAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *DashScopeAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *DashScopeAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *DashScopeAdapter) isImageModel() bool {
	return strings.Contains(a.b.Model(dashScopeDefaultModel), "t2i")
}

func (a *DashScopeAdapter) output() base.TaskOutput {
	if a.isImageModel() {
		return base.TaskOutput{MediaType: media.MediaImage}
	}
	return base.TaskOutput{MediaType: media.MediaVideo, ContentType: "video/mp4"}
}

func (a *DashScopeAdapter) headers() map[string]string {
	h := a.b.BearerHeaders()
	h["X-DashScope-Async"] = "enable"
	return h
}

func (a *DashScopeAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[DashScopeParams](req)
	if err != nil {
		return nil, err
	}

	model := a.b.Model(dashScopeDefaultModel)
	body := dashScopeRequest{
		Model:      model,
		Input:      dashScopeInput{Prompt: req.Prompt, NegativePrompt: p.NegativePrompt},
		Parameters: map[string]any{},
	}
	if p.PromptExtend != nil {
		body.Parameters["prompt_extend"] = *p.PromptExtend
	}
	if p.Seed != nil {
		body.Parameters["seed"] = *p.Seed
	}

	var path string
	switch {
	case a.isImageModel():
		path = dashScopeText2Image
		body.Parameters["size"] = dashScopeImageSizes.Snap(p.Size)
		body.Parameters["n"] = req.Outputs()
	case strings.Contains(model, "kf2v"):
		path = dashScopeImage2Video
		if len(req.InputImages) == 0 {
			return nil, media.NewInvalidRequestError(model + " requires a first frame image")
		}
		body.Input.FirstFrameURL = req.InputImages[0]
		body.Input.LastFrameURL = p.LastFrameURL
		if body.Input.LastFrameURL == "" && len(req.InputImages) > 1 {
			body.Input.LastFrameURL = req.InputImages[1]
		}
		if p.Duration > 0 {
			body.Parameters["duration"] = p.Duration
		}
	default:
		path = dashScopeVideoSynthesis
		if img := a.b.SingleImage(req); img != "" {
			body.Input.ImgURL = img
		} else {
			body.Parameters["size"] = dashScopeVideoSizes.Snap(p.Size)
		}
		if p.Duration > 0 {
			body.Parameters["duration"] = p.Duration
		}
	}

	var resp dashScopeResponse
	err = a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(dashScopeDefaultEndpoint) + path,
		Headers: a.headers(),
		Body:    body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, media.MapHTTPError(http.StatusBadRequest, resp.Code+": "+resp.Message, DashScopeName)
	}
	return a.b.AwaitTask(ctx, req, a, resp.Output.TaskID, a.output())
}

// CheckTaskStatus implements media.TaskChecker.
func (a *DashScopeAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	id, err := base.PathID(taskID)
	if err != nil {
		return nil, err
	}
	var resp dashScopeResponse
	err = a.b.DoJSON(ctx, base.Request{
		Method:  http.MethodGet,
		URL:     a.b.Endpoint(dashScopeDefaultEndpoint) + "/api/v1/tasks/" + id,
		Headers: a.b.BearerHeaders(),
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := resp.Output
	st := &media.TaskStatusResponse{}
	switch strings.ToUpper(out.TaskStatus) {
	case "UNKNOWN":
		// 任务过期或不存在
		st.Status = media.TaskFailed
		st.Error = "task unknown or expired"
	default:
		st.Status = base.NormalizeStatus(out.TaskStatus)
	}
	switch st.Status {
	case media.TaskSucceeded:
		if out.VideoURL != "" {
			st.Output = append(st.Output, out.VideoURL)
		}
		for _, r := range out.Results {
			if r.URL != "" {
				st.Output = append(st.Output, r.URL)
			}
		}
	case media.TaskFailed:
		if out.Message != "" {
			st.Error = out.Message
			if out.Code != "" {
				st.Error = out.Code + ": " + out.Message
			}
		}
	}
	return st, nil
}
