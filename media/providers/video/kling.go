package video

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/golang-jwt/jwt/v5"
	"github.com/invopop/jsonschema"
)

// KlingName is the registry name of the Kling adapter.
const KlingName = "KlingAdapter"

const (
	klingDefaultEndpoint = "https://api-singapore.klingai.com"
	klingDefaultModel    = "kling-v2-1"
	klingTokenTTL        = 30 * time.Minute

	klingText2Video  = "text2video"
	klingImage2Video = "image2video"
)

var klingRatios = base.AspectRatios{
	Supported: []string{"16:9", "9:16", "1:1"},
	Aliases:   base.CommonAspectRatios.Aliases,
	Default:   "16:9",
}

// KlingParams are the parameters accepted by KlingAdapter.
type KlingParams struct {
	AspectRatio    string  `json:"aspectRatio"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	CfgScale       float64 `json:"cfgScale" validate:"gte=0,lte=1"`
	Mode           string  `json:"mode" validate:"oneof=std pro"`
	Duration       int     `json:"duration" validate:"oneof=5 10"`
}

// DefaultKlingParams returns the Kling defaults.
func DefaultKlingParams() KlingParams {
	return KlingParams{AspectRatio: "16:9", CfgScale: 0.5, Mode: "std", Duration: 5}
}

type klingRequest struct {
	ModelName      string  `json:"model_name"`
	Prompt         string  `json:"prompt,omitempty"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	CfgScale       float64 `json:"cfg_scale"`
	Mode           string  `json:"mode"`
	AspectRatio    string  `json:"aspect_ratio,omitempty"`
	Duration       string  `json:"duration"`
	Image          string  `json:"image,omitempty"`
}

type klingEnvelope[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      T      `json:"data"`
}

type klingTask struct {
	TaskID        string `json:"task_id"`
	TaskStatus    string `json:"task_status"`
	TaskStatusMsg string `json:"task_status_msg"`
	TaskResult    struct {
		Videos []struct {
			ID       string `json:"id"`
			URL      string `json:"url"`
			Duration string `json:"duration"`
		} `json:"videos"`
	} `json:"task_result"`
}

// KlingAdapter drives Kling text2video and image2video tasks. The stored
// key is "accessKey,secretKey" (a colon also works) and is exchanged for a
// short-lived HS256 token on every call.
//
// Task ids are "<kind>:<id>" because the status path depends on the kind.
type KlingAdapter struct {
	b *base.Base
}

// NewKling builds a KlingAdapter.
func NewKling(cfg media.ProviderConfig, deps base.Deps) *KlingAdapter {
	return &KlingAdapter{b: base.New(KlingName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultKlingParams, base.MaxOutputs(1))),
		base.WithPollDefaults(base.PollOptions{Interval: 10 * time.Second}),
	)}
}

func (a *KlingAdapter) Name() string { return KlingName }

// ParamsSchema describes KlingParams.
func (a *KlingAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *KlingAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *KlingAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *KlingAdapter) output() base.TaskOutput {
	return base.TaskOutput{MediaType: media.MediaVideo, ContentType: "video/mp4"}
}

func (a *KlingAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[KlingParams](req)
	if err != nil {
		return nil, err
	}
	headers, err := a.headers()
	if err != nil {
		return nil, err
	}

	body := klingRequest{
		ModelName:      a.b.Model(klingDefaultModel),
		Prompt:         req.Prompt,
		NegativePrompt: p.NegativePrompt,
		CfgScale:       p.CfgScale,
		Mode:           p.Mode,
		Duration:       fmt.Sprint(p.Duration),
	}
	kind := klingText2Video
	if img := a.b.SingleImage(req); img != "" {
		kind = klingImage2Video
		// 可灵要求裸 base64，不带 data URI 前缀
		if base.IsDataURI(img) {
			if _, payload, ok := strings.Cut(img, ","); ok {
				img = payload
			}
		}
		body.Image = img
	} else {
		body.AspectRatio = klingRatios.Snap(p.AspectRatio)
	}

	var resp klingEnvelope[klingTask]
	err = a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(klingDefaultEndpoint) + "/v1/videos/" + kind,
		Headers: headers,
		Body:    body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, klingError(resp.Code, resp.Message)
	}
	taskID := ""
	if resp.Data.TaskID != "" {
		taskID = kind + ":" + resp.Data.TaskID
	}
	return a.b.AwaitTask(ctx, req, a, taskID, a.output())
}

// CheckTaskStatus implements media.TaskChecker. Ids without a kind prefix
// are treated as text2video tasks.
func (a *KlingAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	kind, id, ok := strings.Cut(taskID, ":")
	if !ok {
		kind, id = klingText2Video, taskID
	}
	if kind != klingText2Video && kind != klingImage2Video {
		return nil, media.NewInvalidRequestError(fmt.Sprintf("invalid task id %q", taskID))
	}
	id, err := base.PathID(id)
	if err != nil {
		return nil, err
	}
	headers, err := a.headers()
	if err != nil {
		return nil, err
	}

	var resp klingEnvelope[klingTask]
	err = a.b.DoJSON(ctx, base.Request{
		Method:  http.MethodGet,
		URL:     fmt.Sprintf("%s/v1/videos/%s/%s", a.b.Endpoint(klingDefaultEndpoint), kind, id),
		Headers: headers,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, klingError(resp.Code, resp.Message)
	}

	task := resp.Data
	st := &media.TaskStatusResponse{}
	switch strings.ToLower(task.TaskStatus) {
	case "succeed":
		st.Status = media.TaskSucceeded
	default:
		st.Status = base.NormalizeStatus(task.TaskStatus)
	}
	switch st.Status {
	case media.TaskSucceeded:
		for _, v := range task.TaskResult.Videos {
			if v.URL != "" {
				st.Output = append(st.Output, v.URL)
			}
		}
	case media.TaskFailed:
		st.Error = task.TaskStatusMsg
	}
	return st, nil
}

func (a *KlingAdapter) headers() (map[string]string, error) {
	token, err := a.token(time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// token signs the access token Kling expects: iss is the access key, the
// secret key signs it.
func (a *KlingAdapter) token(now time.Time) (string, error) {
	accessKey, secretKey, ok := splitKlingKey(a.b.AuthKey())
	if !ok {
		return "", media.NewConfigurationError(KlingName + " credential must be \"accessKey,secretKey\"")
	}
	claims := jwt.MapClaims{
		"iss": accessKey,
		"exp": now.Add(klingTokenTTL).Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["typ"] = "JWT"
	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("sign kling token: %w", err)
	}
	return signed, nil
}

func splitKlingKey(key string) (string, string, bool) {
	sep := ","
	if !strings.Contains(key, sep) {
		sep = ":"
	}
	ak, sk, ok := strings.Cut(key, sep)
	ak, sk = strings.TrimSpace(ak), strings.TrimSpace(sk)
	return ak, sk, ok && ak != "" && sk != ""
}

// klingError maps Kling business codes onto HTTP-like classes:
// 10xx auth, 11xx account, 12xx parameters, 13xx policy and rate limits,
// 5xxx server faults.
func klingError(code int, msg string) error {
	status := http.StatusBadRequest
	switch {
	case code >= 1000 && code < 1100:
		status = http.StatusUnauthorized
	case code >= 1100 && code < 1200:
		status = http.StatusForbidden
	case code == 1302 || code == 1303:
		status = http.StatusTooManyRequests
	case code >= 5000:
		status = http.StatusInternalServerError
	}
	if msg == "" {
		msg = fmt.Sprintf("kling error %d", code)
	}
	return media.MapHTTPError(status, msg, KlingName).WithDetail("providerCode", code)
}
