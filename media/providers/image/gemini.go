package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// GeminiName is the registry name of the Gemini image adapter.
const GeminiName = "GeminiImageAdapter"

const (
	geminiDefaultEndpoint = "https://generativelanguage.googleapis.com"
	geminiDefaultModel    = "gemini-2.5-flash-image"
)

var geminiRatios = base.AspectRatios{
	Supported: []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"},
	Aliases:   base.CommonAspectRatios.Aliases,
	Default:   "1:1",
}

// GeminiImageParams are the parameters accepted by GeminiImageAdapter.
type GeminiImageParams struct {
	AspectRatio string `json:"aspectRatio"`
}

// DefaultGeminiImageParams returns the Gemini defaults.
func DefaultGeminiImageParams() GeminiImageParams {
	return GeminiImageParams{AspectRatio: "1:1"}
}

type geminiInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *geminiInline `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		ImageConfig        struct {
			AspectRatio string `json:"aspectRatio,omitempty"`
		} `json:"imageConfig"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		FinishReason string        `json:"finishReason"`
		Content      geminiContent `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GeminiImageAdapter calls generateContent and uploads the inline images.
// It requires storageOffload.
type GeminiImageAdapter struct {
	media.PollingUnsupported
	b *base.Base
}

// NewGeminiImage builds a GeminiImageAdapter.
func NewGeminiImage(cfg media.ProviderConfig, deps base.Deps) *GeminiImageAdapter {
	return &GeminiImageAdapter{
		PollingUnsupported: media.PollingUnsupported{AdapterName: GeminiName},
		b: base.New(GeminiName, cfg, deps,
			base.WithValidator(base.ParamSchema(DefaultGeminiImageParams, base.MaxOutputs(1))),
		),
	}
}

func (a *GeminiImageAdapter) Name() string { return GeminiName }

// ParamsSchema describes GeminiImageParams.
func (a *GeminiImageAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *GeminiImageAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *GeminiImageAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	if !a.b.Config().StorageOffload {
		return nil, media.NewConfigurationError(GeminiName + " returns inline media and requires storageOffload=true")
	}
	p, err := base.DecodeParams[GeminiImageParams](req)
	if err != nil {
		return nil, err
	}

	// data URI 直接内联，远程 URL 拼到 prompt 前面
	var parts []geminiPart
	var remote []string
	for _, img := range req.InputImages {
		if !base.IsDataURI(img) {
			remote = append(remote, img)
			continue
		}
		data, ct, err := splitDataURI(img)
		if err != nil {
			return nil, media.NewInvalidRequestError("invalid inline image: " + err.Error())
		}
		parts = append(parts, geminiPart{InlineData: &geminiInline{MimeType: ct, Data: data}})
	}
	parts = append(parts, geminiPart{Text: base.PrependImages(req.Prompt, remote)})

	var body geminiRequest
	body.Contents = []geminiContent{{Role: "user", Parts: parts}}
	body.GenerationConfig.ResponseModalities = []string{"IMAGE"}
	body.GenerationConfig.ImageConfig.AspectRatio = geminiRatios.Snap(p.AspectRatio)

	var resp geminiResponse
	err = a.b.DoJSON(ctx, base.Request{
		URL:     fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.b.Endpoint(geminiDefaultEndpoint), a.b.Model(geminiDefaultModel)),
		Headers: map[string]string{"x-goog-api-key": a.b.AuthKey()},
		Body:    body,
	}, &resp)
	if err != nil {
		return nil, err
	}

	var (
		payloads []string
		mimeType string
		texts    []string
		finish   string
	)
	for _, c := range resp.Candidates {
		finish = c.FinishReason
		for _, part := range c.Content.Parts {
			switch {
			case part.InlineData != nil && part.InlineData.Data != "":
				payloads = append(payloads, part.InlineData.Data)
				mimeType = part.InlineData.MimeType
			case part.Text != "":
				texts = append(texts, part.Text)
			}
		}
	}
	if len(payloads) == 0 {
		msg := "no image returned"
		switch {
		case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
			msg = "prompt blocked: " + resp.PromptFeedback.BlockReason
		case len(texts) > 0:
			msg = strings.Join(texts, " ")
		case finish != "":
			msg = "no image returned (finishReason " + finish + ")"
		}
		return nil, media.NewProviderError(GeminiName, msg, false)
	}

	results, err := a.b.OffloadBase64Results(ctx, payloads, media.MediaImage, mimeType)
	if err != nil {
		return nil, err
	}
	return media.Succeeded(results...), nil
}

// splitDataURI returns the base64 body and media type of a data URI.
func splitDataURI(s string) (string, string, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(s), "data:"), ",")
	if !ok {
		return "", "", fmt.Errorf("missing payload")
	}
	ct := strings.TrimSuffix(meta, ";base64")
	if ct == "" {
		ct = "image/png"
	}
	return data, ct, nil
}
