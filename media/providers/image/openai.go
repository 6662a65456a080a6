package image

import (
	"context"
	"strings"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// OpenAIName is the registry name of the OpenAI Images adapter.
const OpenAIName = "OpenAIImageAdapter"

const (
	openAIDefaultEndpoint = "https://api.openai.com"
	openAIDefaultModel    = "dall-e-3"
)

var (
	dalleSizes = base.AspectRatios{
		Supported: []string{"1024x1024", "1792x1024", "1024x1792"},
		Aliases:   map[string]string{"square": "1024x1024", "landscape": "1792x1024", "portrait": "1024x1792"},
		Default:   "1024x1024",
	}
	gptImageSizes = base.AspectRatios{
		Supported: []string{"1024x1024", "1536x1024", "1024x1536"},
		Aliases:   map[string]string{"square": "1024x1024", "landscape": "1536x1024", "portrait": "1024x1536"},
		Default:   "1024x1024",
	}
)

// OpenAIImageParams are the parameters accepted by OpenAIImageAdapter.
type OpenAIImageParams struct {
	Size           string `json:"size" jsonschema:"description=WxH or W:H; snapped to a supported size"`
	Quality        string `json:"quality,omitempty" validate:"omitempty,oneof=standard hd low medium high auto"`
	Style          string `json:"style,omitempty" validate:"omitempty,oneof=vivid natural"`
	ResponseFormat string `json:"responseFormat" validate:"oneof=url b64_json"`
}

// DefaultOpenAIImageParams returns the OpenAI defaults.
func DefaultOpenAIImageParams() OpenAIImageParams {
	return OpenAIImageParams{Size: "1024x1024", ResponseFormat: "url"}
}

type dalleRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type dalleResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// OpenAIImageAdapter calls /v1/images/generations synchronously.
type OpenAIImageAdapter struct {
	media.PollingUnsupported
	b *base.Base
}

// NewOpenAIImage builds an OpenAIImageAdapter.
func NewOpenAIImage(cfg media.ProviderConfig, deps base.Deps) *OpenAIImageAdapter {
	return &OpenAIImageAdapter{
		PollingUnsupported: media.PollingUnsupported{AdapterName: OpenAIName},
		b: base.New(OpenAIName, cfg, deps,
			base.WithValidator(base.ParamSchema(DefaultOpenAIImageParams, base.MaxOutputs(10))),
		),
	}
}

func (a *OpenAIImageAdapter) Name() string { return OpenAIName }

// ParamsSchema describes OpenAIImageParams.
func (a *OpenAIImageAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *OpenAIImageAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *OpenAIImageAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[OpenAIImageParams](req)
	if err != nil {
		return nil, err
	}

	model := a.b.Model(openAIDefaultModel)
	gptImage := strings.HasPrefix(model, "gpt-image")

	body := dalleRequest{
		Model: model,
		// generations 接口没有参考图字段
		Prompt:  base.PrependImages(req.Prompt, req.InputImages),
		N:       req.Outputs(),
		Quality: p.Quality,
		Style:   p.Style,
	}
	if gptImage {
		// gpt-image 系列始终返回 b64_json，且不接受 response_format
		body.Size = gptImageSizes.Snap(p.Size)
	} else {
		body.Size = dalleSizes.Snap(p.Size)
		body.ResponseFormat = p.ResponseFormat
	}

	var resp dalleResponse
	err = a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(openAIDefaultEndpoint) + "/v1/images/generations",
		Headers: a.b.BearerHeaders(),
		Body:    body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, media.NewProviderError(OpenAIName, "no images returned", false)
	}

	var (
		urls, inline []string
		revised      []string
	)
	for _, d := range resp.Data {
		switch {
		case d.URL != "":
			urls = append(urls, d.URL)
		case d.B64JSON != "":
			inline = append(inline, d.B64JSON)
		}
		revised = append(revised, d.RevisedPrompt)
	}

	var results []media.GenerationResult
	if len(urls) > 0 {
		results, err = a.b.OffloadResults(ctx, urls, media.MediaImage, "")
	} else {
		results, err = a.b.OffloadBase64Results(ctx, inline, media.MediaImage, "image/png")
	}
	if err != nil {
		return nil, err
	}
	for i := range results {
		if i < len(revised) && revised[i] != "" {
			results[i].Metadata = map[string]any{"revisedPrompt": revised[i]}
		}
	}
	return media.Succeeded(results...), nil
}
