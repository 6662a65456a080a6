package video

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// RunwayName is the registry name of the Runway adapter.
const RunwayName = "RunwayAdapter"

const (
	runwayDefaultEndpoint = "https://api.dev.runwayml.com"
	runwayDefaultModel    = "gen4_turbo"
	runwayAPIVersion      = "2024-11-06"
)

// Runway 只接受像素比例
var runwayRatios = base.AspectRatios{
	Supported: []string{"1280:720", "720:1280", "1104:832", "832:1104", "960:960", "1584:672"},
	Aliases: map[string]string{
		"16:9":      "1280:720",
		"9:16":      "720:1280",
		"4:3":       "1104:832",
		"3:4":       "832:1104",
		"1:1":       "960:960",
		"21:9":      "1584:672",
		"landscape": "1280:720",
		"portrait":  "720:1280",
		"square":    "960:960",
	},
	Default: "1280:720",
}

// RunwayParams are the parameters accepted by RunwayAdapter.
type RunwayParams struct {
	Ratio    string `json:"ratio" jsonschema:"description=W:H; snapped to a Runway resolution"`
	Duration int    `json:"duration" validate:"oneof=5 10"`
	Seed     *int64 `json:"seed,omitempty" validate:"omitempty,gte=0,lte=4294967295"`
}

// DefaultRunwayParams returns the Runway defaults.
func DefaultRunwayParams() RunwayParams {
	return RunwayParams{Ratio: "16:9", Duration: 5}
}

type runwayRequest struct {
	Model       string `json:"model"`
	PromptText  string `json:"promptText,omitempty"`
	PromptImage string `json:"promptImage,omitempty"`
	Ratio       string `json:"ratio"`
	Duration    int    `json:"duration"`
	Seed        *int64 `json:"seed,omitempty"`
}

type runwayTask struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Progress    any      `json:"progress"`
	Output      []string `json:"output"`
	Failure     string   `json:"failure"`
	FailureCode string   `json:"failureCode"`
}

// RunwayAdapter drives Runway's image_to_video and text_to_video tasks.
type RunwayAdapter struct {
	b *base.Base
}

// NewRunway builds a RunwayAdapter.
func NewRunway(cfg media.ProviderConfig, deps base.Deps) *RunwayAdapter {
	return &RunwayAdapter{b: base.New(RunwayName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultRunwayParams, base.MaxOutputs(1))),
		base.WithPollDefaults(base.PollOptions{Interval: 10 * time.Second}),
	)}
}

func (a *RunwayAdapter) Name() string { return RunwayName }

// ParamsSchema describes RunwayParams.
func (a *RunwayAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *RunwayAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *RunwayAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *RunwayAdapter) output() base.TaskOutput {
	return base.TaskOutput{MediaType: media.MediaVideo, ContentType: "video/mp4"}
}

func (a *RunwayAdapter) headers() map[string]string {
	h := a.b.BearerHeaders()
	h["X-Runway-Version"] = runwayAPIVersion
	return h
}

func (a *RunwayAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[RunwayParams](req)
	if err != nil {
		return nil, err
	}

	body := runwayRequest{
		Model:       a.b.Model(runwayDefaultModel),
		PromptText:  req.Prompt,
		PromptImage: a.b.SingleImage(req),
		Ratio:       runwayRatios.Snap(p.Ratio),
		Duration:    p.Duration,
		Seed:        p.Seed,
	}
	path := "/v1/text_to_video"
	if body.PromptImage != "" {
		path = "/v1/image_to_video"
	}

	var created struct {
		ID string `json:"id"`
	}
	err = a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(runwayDefaultEndpoint) + path,
		Headers: a.headers(),
		Body:    body,
	}, &created)
	if err != nil {
		return nil, err
	}
	return a.b.AwaitTask(ctx, req, a, created.ID, a.output())
}

// CheckTaskStatus implements media.TaskChecker.
func (a *RunwayAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	id, err := base.PathID(taskID)
	if err != nil {
		return nil, err
	}
	var task runwayTask
	err = a.b.DoJSON(ctx, base.Request{
		Method:  "GET",
		URL:     a.b.Endpoint(runwayDefaultEndpoint) + "/v1/tasks/" + id,
		Headers: a.headers(),
	}, &task)
	if err != nil {
		return nil, err
	}

	st := &media.TaskStatusResponse{Progress: base.ParseProgress(task.Progress)}
	switch strings.ToUpper(task.Status) {
	case "CANCELLED":
		st.Status = media.TaskFailed
		st.Error = "task cancelled"
	case "THROTTLED":
		st.Status = media.TaskProcessing
	default:
		st.Status = base.NormalizeStatus(task.Status)
	}
	switch st.Status {
	case media.TaskSucceeded:
		st.Output = task.Output
	case media.TaskFailed:
		if task.Failure != "" {
			st.Error = task.Failure
			if task.FailureCode != "" {
				st.Error += " (" + task.FailureCode + ")"
			}
		}
	}
	return st, nil
}
