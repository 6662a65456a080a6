package music

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/invopop/jsonschema"
)

// MinimaxName is the registry name of the MiniMax music adapter.
const MinimaxName = "MinimaxAdapter"

const (
	minimaxDefaultEndpoint = "https://api.minimax.io"
	minimaxDefaultModel    = "music-1.5"
)

// MinimaxParams are the parameters accepted by MinimaxMusicAdapter.
type MinimaxParams struct {
	Lyrics       string `json:"lyrics,omitempty" validate:"omitempty,max=3000"`
	SampleRate   int    `json:"sampleRate" validate:"oneof=16000 24000 32000 44100"`
	Bitrate      int    `json:"bitrate" validate:"oneof=32000 64000 128000 256000"`
	Format       string `json:"format" validate:"oneof=mp3 wav pcm"`
	OutputFormat string `json:"outputFormat" validate:"oneof=hex url"`
}

// DefaultMinimaxParams returns the MiniMax defaults.
func DefaultMinimaxParams() MinimaxParams {
	return MinimaxParams{SampleRate: 44100, Bitrate: 128000, Format: "mp3", OutputFormat: "url"}
}

type minimaxAudioSetting struct {
	SampleRate int    `json:"sample_rate,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	Format     string `json:"format,omitempty"`
}

type minimaxRequest struct {
	Model        string              `json:"model"`
	Prompt       string              `json:"prompt,omitempty"`
	Lyrics       string              `json:"lyrics,omitempty"`
	AudioSetting minimaxAudioSetting `json:"audio_setting"`
	OutputFormat string              `json:"output_format,omitempty"`
}

type minimaxResponse struct {
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	Data struct {
		Audio  string `json:"audio"`
		Status int    `json:"status"`
	} `json:"data"`
	ExtraInfo struct {
		AudioLength float64 `json:"audio_length"`
		AudioFormat string  `json:"audio_format"`
	} `json:"extra_info"`
	TraceID string `json:"trace_id"`
}

// MinimaxMusicAdapter calls /v1/music_generation synchronously.
type MinimaxMusicAdapter struct {
	media.PollingUnsupported
	b *base.Base
}

// NewMinimaxMusic builds a MinimaxMusicAdapter.
func NewMinimaxMusic(cfg media.ProviderConfig, deps base.Deps) *MinimaxMusicAdapter {
	return &MinimaxMusicAdapter{
		PollingUnsupported: media.PollingUnsupported{AdapterName: MinimaxName},
		b: base.New(MinimaxName, cfg, deps,
			base.WithValidator(base.ParamSchema(DefaultMinimaxParams, base.MaxOutputs(1))),
		),
	}
}

func (a *MinimaxMusicAdapter) Name() string { return MinimaxName }

// ParamsSchema describes MinimaxParams.
func (a *MinimaxMusicAdapter) ParamsSchema() *jsonschema.Schema { return a.b.SchemaOf() }

func (a *MinimaxMusicAdapter) Dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) *media.AdapterResponse {
	return a.b.Run(ctx, req, a.dispatch)
}

func (a *MinimaxMusicAdapter) dispatch(ctx context.Context, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	p, err := base.DecodeParams[MinimaxParams](req)
	if err != nil {
		return nil, err
	}
	if p.OutputFormat == "hex" && !a.b.Config().StorageOffload {
		return nil, media.NewConfigurationError(MinimaxName + " hex output requires storageOffload=true")
	}

	var resp minimaxResponse
	err = a.b.DoJSON(ctx, base.Request{
		URL:     a.b.Endpoint(minimaxDefaultEndpoint) + "/v1/music_generation",
		Headers: a.b.BearerHeaders(),
		Body: minimaxRequest{
			Model:  a.b.Model(minimaxDefaultModel),
			Prompt: req.Prompt,
			Lyrics: p.Lyrics,
			AudioSetting: minimaxAudioSetting{
				SampleRate: p.SampleRate,
				Bitrate:    p.Bitrate,
				Format:     p.Format,
			},
			OutputFormat: p.OutputFormat,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if code := resp.BaseResp.StatusCode; code != 0 {
		return nil, minimaxError(code, resp.BaseResp.StatusMsg)
	}
	if resp.Data.Audio == "" {
		return nil, media.NewProviderError(MinimaxName, "no audio returned", false)
	}

	contentType := audioContentType(p.Format)
	var url string
	if p.OutputFormat == "url" {
		url, err = a.b.DownloadAndUpload(ctx, resp.Data.Audio, contentType)
	} else {
		var data []byte
		data, err = hex.DecodeString(resp.Data.Audio)
		if err != nil {
			return nil, media.NewProviderError(MinimaxName, "invalid hex audio payload", false).WithCause(err)
		}
		url, err = a.b.UploadBytes(ctx, data, contentType)
	}
	if err != nil {
		return nil, err
	}

	result := media.GenerationResult{Type: media.MediaAudio, URL: url}
	if resp.ExtraInfo.AudioLength > 0 {
		result.Metadata = map[string]any{"durationMs": resp.ExtraInfo.AudioLength}
	}
	return media.Succeeded(result), nil
}

func audioContentType(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

// minimaxError maps base_resp status codes.
func minimaxError(code int, msg string) error {
	status := http.StatusBadRequest
	switch code {
	case 1002, 1039:
		status = http.StatusTooManyRequests
	case 1004, 2049:
		status = http.StatusUnauthorized
	case 1000, 1001, 1013:
		status = http.StatusInternalServerError
	}
	if msg == "" {
		msg = fmt.Sprintf("minimax error %d", code)
	}
	return media.MapHTTPError(status, msg, MinimaxName).WithDetail("providerCode", code)
}
