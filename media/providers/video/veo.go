package video

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// VeoName is the registry name of the Veo adapter.
const VeoName = "VeoAdapter"

const (
	veoDefaultEndpoint = "https://generativelanguage.googleapis.com"
	veoDefaultModel    = "veo-3.0-generate-001"
)

var veoRatios = base.AspectRatios{
	Supported: []string{"16:9", "9:16"},
	Aliases:   base.CommonAspectRatios.Aliases,
	Default:   "16:9",
}

// VeoParams are the parameters accepted by VeoAdapter.
type VeoParams struct {
	AspectRatio      string `json:"aspectRatio"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty" validate:"omitempty,oneof=4 5 6 8"`
	PersonGeneration string `json:"personGeneration,omitempty" validate:"omitempty,oneof=allow_all allow_adult dont_allow"`
	Resolution       string `json:"resolution,omitempty" validate:"omitempty,oneof=720p 1080p"`
}

// DefaultVeoParams returns the Veo defaults.
func DefaultVeoParams() VeoParams {
	return VeoParams{AspectRatio: "16:9"}
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoParameters struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	SampleCount      int    `json:"sampleCount,omitempty"`
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
			RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

// VeoAdapter starts a long-running Veo operation and polls it.
// The operation name is the task id.
type VeoAdapter struct {
	b *base.Base
}

// NewVeo builds a VeoAdapter.
func NewVeo(cfg media.ProviderConfig, deps base.Deps) *VeoAdapter {
	a := &VeoAdapter{}
	a.b = base.New(VeoName, cfg, deps,
		base.WithValidator(base.ParamSchema(DefaultVeoParams, base.MaxOutputs(4))),
		base.WithPollDefaults(base.PollOptions{Interval: 10 * time.Second}),
		base.WithDownloadAuth(a.downloadAuth),
	)
	return a
}

func (a *VeoAdapter) Name() string { return VeoName }

// ParamsSchema describes VeoParams.
func (a *VeoAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *VeoAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *VeoAdapter) Resume(ctx context.Context, taskID string) *media.AdapterResponse {
	return a.b.ResumeTask(ctx, a, taskID, a.output())
}

func (a *VeoAdapter) output() base.TaskOutput {
	return base.TaskOutput{MediaType: media.MediaVideo, ContentType: "video/mp4"}
}

func (a *VeoAdapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.b.AuthKey()}
}

func (a *VeoAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[VeoParams](req)
	if err != nil {
		return nil, err
	}

	inst := veoInstance{Prompt: req.Prompt}
	if img := a.b.SingleImage(req); img != "" {
		if inst.Image, err = a.inlineImage(ctx, img); err != nil {
			return nil, err
		}
	}
	body := veoRequest{
		Instances: []veoInstance{inst},
		Parameters: veoParameters{
			AspectRatio:      veoRatios.Snap(p.AspectRatio),
			NegativePrompt:   p.NegativePrompt,
			DurationSeconds:  p.DurationSeconds,
			PersonGeneration: p.PersonGeneration,
			Resolution:       p.Resolution,
		},
	}
	if n := req.Outputs(); n > 1 {
		body.Parameters.SampleCount = n
	}

	var op veoOperation
	err = a.b.DoJSON(ctx, base.Request{
		URL:     fmt.Sprintf("%s/v1beta/models/%s:predictLongRunning", a.b.Endpoint(veoDefaultEndpoint), a.b.Model(veoDefaultModel)),
		Headers: a.headers(),
		Body:    body,
	}, &op)
	if err != nil {
		return nil, err
	}
	return a.b.AwaitTask(ctx, req, a, op.Name, a.output())
}

// inlineImage converts a data URI or a remote image into Veo's inline form.
func (a *VeoAdapter) inlineImage(ctx context.Context, img string) (*veoImage, error) {
	if base.IsDataURI(img) {
		data, ct, err := base.DecodeBase64(img)
		if err != nil {
			return nil, media.NewInvalidRequestError("invalid inline image: " + err.Error())
		}
		if ct == "" {
			ct = "image/png"
		}
		return &veoImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(data), MimeType: ct}, nil
	}
	data, ct, err := a.b.Fetch(ctx, img)
	if err != nil {
		return nil, err
	}
	if ct == "" || !strings.HasPrefix(ct, "image/") {
		ct = "image/png"
	}
	return &veoImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(data), MimeType: ct}, nil
}

// CheckTaskStatus implements media.TaskChecker.
func (a *VeoAdapter) CheckTaskStatus(ctx context.Context, taskID string) (*media.TaskStatusResponse, error) {
	id, err := base.PathIDs(taskID)
	if err != nil {
		return nil, err
	}
	var op veoOperation
	err = a.b.DoJSON(ctx, base.Request{
		Method:  "GET",
		URL:     a.b.Endpoint(veoDefaultEndpoint) + "/v1beta/" + id,
		Headers: a.headers(),
	}, &op)
	if err != nil {
		return nil, err
	}

	if !op.Done {
		return &media.TaskStatusResponse{Status: media.TaskProcessing}, nil
	}
	if op.Error != nil {
		return &media.TaskStatusResponse{Status: media.TaskFailed, Error: op.Error.Message}, nil
	}

	st := &media.TaskStatusResponse{Status: media.TaskSucceeded}
	if op.Response != nil {
		gen := op.Response.GenerateVideoResponse
		for _, s := range gen.GeneratedSamples {
			if s.Video.URI != "" {
				st.Output = append(st.Output, s.Video.URI)
			}
		}
		if len(st.Output) == 0 && len(gen.RAIMediaFilteredReasons) > 0 {
			return &media.TaskStatusResponse{
				Status: media.TaskFailed,
				Error:  "filtered: " + strings.Join(gen.RAIMediaFilteredReasons, "; "),
			}, nil
		}
	}
	return st, nil
}

// downloadAuth sends the key as a header, and only to the API host. Sample
// URIs then stay key-free in results, logs and error messages.
func (a *VeoAdapter) downloadAuth(u *url.URL) map[string]string {
	api, err := url.Parse(a.b.Endpoint(veoDefaultEndpoint))
	if err != nil || !strings.EqualFold(u.Host, api.Host) {
		return nil
	}
	return a.headers()
}
