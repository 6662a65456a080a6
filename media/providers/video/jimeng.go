package video

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// JimengName is the registry name of the Jimeng adapter.
const JimengName = "JimengAdapter"

const (
	jimengDefaultEndpoint = "https://visual.volcengineapi.com"
	jimengDefaultReqKey   = "jimeng_ti2v_v30_pro"
	jimengAPIVersion      = "2022-08-31"
	jimengCodeOK          = 10000
	jimengFPS             = 24
)

var jimengRatios = base.AspectRatios{
	Supported: []string{"16:9", "4:3", "1:1", "3:4", "9:16", "21:9"},
	Aliases:   base.CommonAspectRatios.Aliases,
	Default:   "16:9",
}

// JimengParams are the parameters accepted by JimengAdapter.
type JimengParams struct {
	AspectRatio string `json:"aspectRatio"`
	Duration    int    `json:"duration" validate:"oneof=5 10"`
	Seed        int64  `json:"seed" validate:"gte=-1"`
}

// DefaultJimengParams returns the Jimeng defaults.
func DefaultJimengParams() JimengParams {
	return JimengParams{AspectRatio: "16:9", Duration: 5, Seed: -1}
}

type jimengSubmitRequest struct {
	ReqKey      string   `json:"req_key"`
	Prompt      string   `json:"prompt"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	Seed        int64    `json:"seed"`
	Frames      int      `json:"frames"`
	AspectRatio string   `json:"aspect_ratio,omitempty"`
}

type jimengResultRequest struct {
	ReqKey string `json:"req_key"`
	TaskID string `json:"task_id"`
}

type jimengResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		TaskID   string `json:"task_id"`
		Status   string `json:"status"`
		VideoURL string `json:"video_url"`
	} `json:"data"`
}

// JimengAdapter submits CVSync2Async tasks. The model identifier is the
// req_key. Requests are sent with a bearer key, which assumes a signing
// gateway in front of the Volcengine endpoint.
type JimengAdapter struct {
	b *base.Base
}

// NewJimeng builds a JimengAdapter.
func NewJimeng(cfg media.ProviderConfig, deps base.Deps) *JimengAdapter {
	return &JimengAdapter{b: base.New(JimengName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultJimengParams, base.MaxOutputs(1))),
		base.WithPollDefaults(base.PollOptions{Interval: 5 * time.Second}),
	)}
}

func (a *JimengAdapter) Name() string { return JimengName }

// ParamsSchema describes JimengParams.
func (a *JimengAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *JimengAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *JimengAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *JimengAdapter) output() base.TaskOutput {
	return base.TaskOutput{MediaType: media.MediaVideo, ContentType: "video/mp4"}
}

func (a *JimengAdapter) call(ctx context.Context, action string, body any) (*jimengResponse, error) {
	var resp jimengResponse
	err := a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(jimengDefaultEndpoint),
		Query:   url.Values{"Action": {action}, "Version": {jimengAPIVersion}},
		Headers: a.b.BearerHeaders(),
		Body:    body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Code != jimengCodeOK {
		return nil, jimengError(resp.Code, resp.Message)
	}
	return &resp, nil
}

func (a *JimengAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[JimengParams](req)
	if err != nil {
		return nil, err
	}

	body := jimengSubmitRequest{
		ReqKey: a.b.Model(jimengDefaultReqKey),
		Prompt: req.Prompt,
		Seed:   p.Seed,
		Frames: jimengFPS*p.Duration + 1,
	}
	if img := a.b.SingleImage(req); img != "" {
		body.ImageURLs = []string{img}
	} else {
		// 图生视频时比例跟随首帧
		body.AspectRatio = jimengRatios.Snap(p.AspectRatio)
	}

	resp, err := a.call(ctx, "CVSync2AsyncSubmitTask", body)
	if err != nil {
		return nil, err
	}
	return a.b.AwaitTask(ctx, req, a, resp.Data.TaskID, a.output())
}

// CheckTaskStatus implements media.TaskChecker.
func (a *JimengAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	resp, err := a.call(ctx, "CVSync2AsyncGetResult", jimengResultRequest{
		ReqKey: a.b.Model(jimengDefaultReqKey),
		TaskID: taskID,
	})
	if err != nil {
		return nil, err
	}

	st := &media.TaskStatusResponse{}
	switch status := strings.ToLower(resp.Data.Status); status {
	case "in_queue", "generating":
		st.Status = media.TaskProcessing
	case "done":
		st.Status = media.TaskSucceeded
		if resp.Data.VideoURL != "" {
			st.Output = []string{resp.Data.VideoURL}
		}
	case "not_found", "expired":
		st.Status = media.TaskFailed
		st.Error = "task " + status
	default:
		st.Status = base.NormalizeStatus(status)
	}
	return st, nil
}

// jimengError maps business codes. 50429 and 50430 are rate limits, 50500
// and 50501 internal faults; the rest are request errors.
func jimengError(code int, msg string) error {
	status := http.StatusBadRequest
	switch code {
	case 50429, 50430:
		status = http.StatusTooManyRequests
	case 50500, 50501:
		status = http.StatusInternalServerError
	}
	if msg == "" {
		msg = fmt.Sprintf("jimeng error %d", code)
	}
	return media.MapHTTPError(status, msg, JimengName).WithDetail("providerCode", code)
}
