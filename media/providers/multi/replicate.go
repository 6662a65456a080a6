package multi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// ReplicateName is the registry name of the Replicate adapter.
const ReplicateName = "ReplicateAdapter"

const replicateDefaultEndpoint = "https://api.replicate.com"

// ReplicateParams are the parameters accepted by ReplicateAdapter.
type ReplicateParams struct {
	OutputType  string `json:"outputType" validate:"oneof=image video audio"`
	ImageField  string `json:"imageField" jsonschema:"description=input field that receives the first input image"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	// Input is merged into the model input as is.
	Input map[string]any `json:"input,omitempty"`
}

// DefaultReplicateParams returns the Replicate defaults.
func DefaultReplicateParams() ReplicateParams {
	return ReplicateParams{OutputType: "image", ImageField: "image"}
}

type replicateRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	Logs   string          `json:"logs"`
}

// ReplicateAdapter runs predictions. With a model version configured it
// posts to /v1/predictions, otherwise to the official model endpoint
// /v1/models/{owner}/{name}/predictions.
type ReplicateAdapter struct {
	b *base.Base
}

// NewReplicate builds a ReplicateAdapter.
func NewReplicate(cfg media.ProviderConfig, deps base.Deps) *ReplicateAdapter {
	return &ReplicateAdapter{b: base.New(ReplicateName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultReplicateParams, base.MaxOutputs(4))),
		base.WithPollDefaults(base.PollOptions{Interval: 3 * time.Second}),
	)}
}

func (a *ReplicateAdapter) Name() string { return ReplicateName }

// ParamsSchema describes ReplicateParams.
func (a *ReplicateAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *ReplicateAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

// Resume infers the media type from the output URLs.
func (a *ReplicateAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return resume(ctx, a.b, a, taskID)
}

func (a *ReplicateAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[ReplicateParams](req)
	if err != nil {
		return nil, err
	}

	input := map[string]any{"prompt": req.Prompt}
	if img := a.b.SingleImage(req); img != "" {
		input[p.ImageField] = img
	}
	if p.AspectRatio != "" {
		input["aspect_ratio"] = base.CommonAspectRatios.Snap(p.AspectRatio)
	}
	if p.Seed != nil {
		input["seed"] = *p.Seed
	}
	if n := req.Outputs(); n > 1 {
		input["num_outputs"] = n
	}
	for k, v := range p.Input {
		input[k] = v
	}

	body := replicateRequest{Input: input}
	url := a.b.Endpoint(replicateDefaultEndpoint) + "/v1/predictions"
	if version := strings.TrimSpace(a.b.Config().ModelVersion); version != "" {
		body.Version = version
	} else {
		model := a.b.Model("")
		if !strings.Contains(model, "/") {
			return nil, media.NewConfigurationError(ReplicateName + " needs modelVersion or an owner/name model identifier")
		}
		url = fmt.Sprintf("%s/v1/models/%s/predictions", a.b.Endpoint(replicateDefaultEndpoint), model)
	}

	var pred replicatePrediction
	err = a.b.DoJSON(ctx, base.Request{URL: url, Headers: a.b.BearerHeaders(), Body: body}, &pred)
	if err != nil {
		return nil, err
	}
	return a.b.AwaitTask(ctx, req, a, pred.ID, base.TaskOutput{MediaType: media.MediaType(p.OutputType)})
}

// CheckTaskStatus implements media.TaskChecker.
func (a *ReplicateAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	id, err := base.PathID(taskID)
	if err != nil {
		return nil, err
	}
	var pred replicatePrediction
	err = a.b.DoJSON(ctx, base.Request{
		Method:  http.MethodGet,
		URL:     a.b.Endpoint(replicateDefaultEndpoint) + "/v1/predictions/" + id,
		Headers: a.b.BearerHeaders(),
	}, &pred)
	if err != nil {
		return nil, err
	}

	st := &media.TaskStatusResponse{
		Status:   base.NormalizeStatus(pred.Status),
		Progress: logProgress(pred.Logs),
	}
	switch st.Status {
	case media.TaskSucceeded:
		st.Output = outputURLs(pred.Output)
	case media.TaskFailed:
		st.Error = rawString(pred.Error)
		if st.Error == "" {
			st.Error = "prediction " + pred.Status
		}
	}
	return st, nil
}

// outputURLs flattens the shapes Replicate models return: a string, a
// list of strings or an object of named files.
func outputURLs(raw json.RawMessage) []string {
	var one string
	if json.Unmarshal(raw, &one) == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	var named map[string]any
	if json.Unmarshal(raw, &named) == nil {
		keys := make([]string, 0, len(named))
		for k := range named {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []string
		for _, k := range keys {
			if s, ok := named[k].(string); ok && strings.HasPrefix(s, "http") {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

var tqdmPercent = regexp.MustCompile(`(\d{1,3})%\|`)

// logProgress reads the last tqdm percentage from prediction logs.
func logProgress(logs string) *float64 {
	m := tqdmPercent.FindAllStringSubmatch(logs, -1)
	if len(m) == 0 {
		return nil
	}
	pct, err := strconv.Atoi(m[len(m)-1][1])
	if err != nil {
		return nil
	}
	return media.Progress(float64(pct) / 100)
}
