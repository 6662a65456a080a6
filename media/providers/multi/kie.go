package multi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// KieName is the registry name of the Kie adapter.
const KieName = "KieAdapter"

const (
	kieDefaultEndpoint = "https://api.kie.ai"
	kieDefaultModel    = "google/nano-banana"
	// kieJobsFlavor is the unified market API; other flavors name a
	// dedicated product API such as "veo" or "runway".
	kieJobsFlavor = "jobs"
	kieCodeOK     = 200
)

// KieParams are the parameters accepted by KieAdapter.
type KieParams struct {
	MediaType   string         `json:"mediaType" validate:"oneof=image video"`
	AspectRatio string         `json:"aspectRatio,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

// DefaultKieParams returns the Kie defaults.
func DefaultKieParams() KieParams {
	return KieParams{MediaType: "image"}
}

type kieEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type kieTask struct {
	TaskID       string   `json:"taskId"`
	Status       string   `json:"status"`
	State        string   `json:"state"`
	SuccessFlag  *int     `json:"successFlag"`
	Progress     any      `json:"progress"`
	ResultURLs   []string `json:"resultUrls"`
	ResultJSON   string   `json:"resultJson"`
	ErrorMessage string   `json:"errorMessage"`
	FailMsg      string   `json:"failMsg"`
	Response     *struct {
		ResultURLs []string `json:"resultUrls"`
	} `json:"response"`
}

// KieAdapter talks to Kie's task APIs. The "jobs" flavor (default) uses
// createTask/recordInfo; any other apiFlavor uses {flavor}/generate and
// {flavor}/record-info. Every response is wrapped in {code,msg,data}.
type KieAdapter struct {
	b *base.Base
}

// NewKie builds a KieAdapter.
func NewKie(cfg media.ProviderConfig, deps base.Deps) *KieAdapter {
	return &KieAdapter{b: base.New(KieName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultKieParams, base.MaxOutputs(4))),
		base.WithPollDefaults(base.PollOptions{Interval: 5 * time.Second}),
	)}
}

func (a *KieAdapter) Name() string { return KieName }

// ParamsSchema describes KieParams.
func (a *KieAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *KieAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

// Resume infers the media type from the result URLs.
func (a *KieAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return resume(ctx, a.b, a, taskID)
}

func (a *KieAdapter) flavor() string {
	f := strings.Trim(strings.TrimSpace(a.b.Config().APIFlavor), "/")
	if f == "" {
		return kieJobsFlavor
	}
	return f
}

func (a *KieAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[KieParams](req)
	if err != nil {
		return nil, err
	}

	var ratio string
	if p.AspectRatio != "" {
		ratio = base.CommonAspectRatios.Snap(p.AspectRatio)
	}

	endpoint := a.b.Endpoint(kieDefaultEndpoint)
	var (
		path string
		body map[string]any
	)
	if flavor := a.flavor(); flavor == kieJobsFlavor {
		input := map[string]any{"prompt": req.Prompt}
		if len(req.InputImages) > 0 {
			input["image_urls"] = req.InputImages
		}
		if ratio != "" {
			input["aspect_ratio"] = ratio
		}
		for k, v := range p.Input {
			input[k] = v
		}
		path = "/api/v1/jobs/createTask"
		body = map[string]any{"model": a.b.Model(kieDefaultModel), "input": input}
	} else {
		// 产品 API 没有统一的图片字段，参考图拼进 prompt
		body = map[string]any{"prompt": base.PrependImages(req.Prompt, req.InputImages)}
		if model := a.b.Config().ModelIdentifier; model != "" {
			body["model"] = model
		}
		if ratio != "" {
			body["aspectRatio"] = ratio
		}
		for k, v := range p.Input {
			body[k] = v
		}
		path = "/api/v1/" + flavor + "/generate"
	}

	var created kieTask
	if err := a.call(ctx, base.Request{URL: endpoint + path, Headers: a.b.BearerHeaders(), Body: body}, &created); err != nil {
		return nil, err
	}
	return a.b.AwaitTask(ctx, req, a, created.TaskID, base.TaskOutput{MediaType: media.MediaType(p.MediaType)})
}

// CheckTaskStatus implements media.TaskChecker.
func (a *KieAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	path := "/api/v1/jobs/recordInfo"
	if flavor := a.flavor(); flavor != kieJobsFlavor {
		path = "/api/v1/" + flavor + "/record-info"
	}

	var task kieTask
	err := a.call(ctx, base.Request{
		Method:  http.MethodGet,
		URL:     a.b.Endpoint(kieDefaultEndpoint) + path,
		Query:   url.Values{"taskId": {taskID}},
		Headers: a.b.BearerHeaders(),
	}, &task)
	if err != nil {
		return nil, err
	}
	return task.toStatus(), nil
}

// call unwraps the {code,msg,data} envelope into out. A body without an
// envelope is decoded into out directly.
func (a *KieAdapter) call(ctx context.Context, r base.Request, out any) error {
	raw, err := a.b.DoRaw(ctx, r)
	if err != nil {
		return err
	}
	var env kieEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", KieName, err)
	}
	if env.Code == 0 && len(env.Data) == 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", KieName, err)
		}
		return nil
	}
	if env.Code != kieCodeOK {
		msg := env.Msg
		if msg == "" {
			msg = fmt.Sprintf("kie error %d", env.Code)
		}
		status := env.Code
		if status < 400 || status > 599 {
			status = http.StatusBadRequest
		}
		return media.MapHTTPError(status, msg, KieName).WithDetail("providerCode", env.Code)
	}
	if len(bytes.TrimSpace(env.Data)) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", KieName, err)
	}
	return nil
}

func (t *kieTask) toStatus() *media.TaskStatusResponse {
	word := t.Status
	if word == "" {
		word = t.State
	}

	st := &media.TaskStatusResponse{Progress: base.ParseProgress(t.Progress)}
	switch {
	case strings.EqualFold(word, "fail"):
		st.Status = media.TaskFailed
	case word == "" && t.SuccessFlag != nil:
		// successFlag: 0 生成中, 1 成功, 2/3 失败
		switch *t.SuccessFlag {
		case 0:
			st.Status = media.TaskProcessing
		case 1:
			st.Status = media.TaskSucceeded
		default:
			st.Status = media.TaskFailed
		}
	default:
		st.Status = base.NormalizeStatus(word)
	}

	switch st.Status {
	case media.TaskSucceeded:
		st.Output = t.resultURLs()
	case media.TaskFailed:
		st.Error = t.FailMsg
		if st.Error == "" {
			st.Error = t.ErrorMessage
		}
	}
	return st
}

func (t *kieTask) resultURLs() []string {
	if len(t.ResultURLs) > 0 {
		return t.ResultURLs
	}
	if t.Response != nil && len(t.Response.ResultURLs) > 0 {
		return t.Response.ResultURLs
	}
	if t.ResultJSON != "" {
		var parsed struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if json.Unmarshal([]byte(t.ResultJSON), &parsed) == nil {
			return parsed.ResultURLs
		}
	}
	return nil
}
