package image

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// FluxName is the registry name of the Flux adapter.
const FluxName = "FluxAdapter"

const (
	fluxDefaultEndpoint = "https://api.bfl.ai"
	fluxDefaultModel    = "flux-pro-1.1"
)

// Flux 2.x 接受 21:9 到 9:21 之间的比例
var fluxRatios = base.AspectRatios{
	Supported: []string{"1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3", "21:9", "9:21"},
	Aliases:   base.CommonAspectRatios.Aliases,
	Default:   "1:1",
}

// FluxParams are the parameters accepted by FluxAdapter.
type FluxParams struct {
	AspectRatio      string  `json:"aspectRatio" jsonschema:"description=W:H or WxH; snapped to a supported ratio"`
	Steps            int     `json:"steps,omitempty" validate:"omitempty,gte=1,lte=50"`
	Guidance         float64 `json:"guidance,omitempty" validate:"omitempty,gte=1.5,lte=10"`
	Seed             *int64  `json:"seed,omitempty"`
	SafetyTolerance  int     `json:"safetyTolerance" validate:"gte=0,lte=6"`
	OutputFormat     string  `json:"outputFormat" validate:"oneof=jpeg png"`
	PromptUpsampling bool    `json:"promptUpsampling,omitempty"`
}

// DefaultFluxParams returns the Flux defaults.
func DefaultFluxParams() FluxParams {
	return FluxParams{AspectRatio: "1:1", SafetyTolerance: 2, OutputFormat: "jpeg"}
}

type fluxRequest struct {
	Prompt           string  `json:"prompt"`
	InputImage       string  `json:"input_image,omitempty"`
	AspectRatio      string  `json:"aspect_ratio,omitempty"`
	Steps            int     `json:"steps,omitempty"`
	Guidance         float64 `json:"guidance,omitempty"`
	Seed             *int64  `json:"seed,omitempty"`
	SafetyTolerance  int     `json:"safety_tolerance"`
	OutputFormat     string  `json:"output_format,omitempty"`
	PromptUpsampling bool    `json:"prompt_upsampling,omitempty"`
}

type fluxSubmitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
}

type fluxResultResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Progress any    `json:"progress"`
	Result   *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

// FluxAdapter submits a Flux task and polls get_result.
// Result URLs are signed and expire after ten minutes, so offload is
// strongly recommended.
type FluxAdapter struct {
	b *base.Base
}

// NewFlux builds a FluxAdapter.
func NewFlux(cfg media.ProviderConfig, deps base.Deps) *FluxAdapter {
	return &FluxAdapter{b: base.New(FluxName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultFluxParams, base.MaxOutputs(1))),
		base.WithPollDefaults(base.PollOptions{Interval: 2 * time.Second, MaxDuration: 300 * time.Second}),
	)}
}

func (a *FluxAdapter) Name() string { return FluxName }

// ParamsSchema describes FluxParams.
func (a *FluxAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *FluxAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *FluxAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *FluxAdapter) output() base.TaskOutput {
	return base.TaskOutput{MediaType: media.MediaImage}
}

func (a *FluxAdapter) headers() map[string]string {
	return map[string]string{"x-key": a.b.AuthKey()}
}

func (a *FluxAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[FluxParams](req)
	if err != nil {
		return nil, err
	}

	body := fluxRequest{
		Prompt:           req.Prompt,
		InputImage:       a.b.SingleImage(req),
		AspectRatio:      fluxRatios.Snap(p.AspectRatio),
		Steps:            p.Steps,
		Guidance:         p.Guidance,
		Seed:             p.Seed,
		SafetyTolerance:  p.SafetyTolerance,
		OutputFormat:     p.OutputFormat,
		PromptUpsampling: p.PromptUpsampling,
	}

	var submitted fluxSubmitResponse
	err = a.b.DoJSON(ctx, base.Request{
		URL:     fmt.Sprintf("%s/v1/%s", a.b.Endpoint(fluxDefaultEndpoint), a.b.Model(fluxDefaultModel)),
		Headers: a.headers(),
		Body:    body,
	}, &submitted)
	if err != nil {
		return nil, err
	}
	return a.b.AwaitTask(ctx, req, a, submitted.ID, a.output())
}

// CheckTaskStatus implements media.TaskChecker.
func (a *FluxAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	var res fluxResultResponse
	err := a.b.DoJSON(ctx, base.Request{
		Method:  "GET",
		URL:     a.b.Endpoint(fluxDefaultEndpoint) + "/v1/get_result",
		Query:   url.Values{"id": {taskID}},
		Headers: a.headers(),
	}, &res)
	if err != nil {
		return nil, err
	}

	st := &media.TaskStatusResponse{Progress: base.ParseProgress(res.Progress)}
	switch strings.ToLower(res.Status) {
	case "ready":
		st.Status = media.TaskSucceeded
		if res.Result != nil && res.Result.Sample != "" {
			st.Output = []string{res.Result.Sample}
		}
	case "content moderated", "request moderated", "task not found":
		st.Status = media.TaskFailed
		st.Error = res.Status
	default:
		st.Status = base.NormalizeStatus(res.Status)
		if st.Status == media.TaskFailed {
			st.Error = "flux task " + strings.ToLower(res.Status)
		}
	}
	return st, nil
}
