package base

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/retry"
	"github.com/BaSui01/mediagen/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxDownloadBytes   = 512 << 20
	offloadConcurrency = 4
)

type downloaded struct {
	data        []byte
	contentType string
}

// DownloadAndUpload re-hosts sourceURL when storage offload is enabled and
// returns sourceURL unchanged otherwise. The download goes through the retry
// policy. An empty contentType keeps the one reported by the source.
func (b *Base) DownloadAndUpload(ctx context.Context, sourceURL, contentType string) (string, error) {
	if !b.cfg.StorageOffload {
		return sourceURL, nil
	}
	if b.storage == nil {
		return "", media.NewConfigurationError("storage offload enabled but no storage service configured")
	}

	start := b.now()
	got, err := retry.DoWithResultTyped(b.retryer, ctx, func() (downloaded, error) {
		return b.download(ctx, sourceURL)
	})
	if err != nil {
		b.metrics.RecordOffload("url", "error", b.now().Sub(start))
		return "", media.NewStorageUploadError("download generated media: "+RedactURL(sourceURL), err)
	}
	if contentType == "" {
		contentType = got.contentType
	}

	hosted, err := b.upload(ctx, got.data, contentType)
	b.metrics.RecordOffload("url", outcome(err), b.now().Sub(start))
	return hosted, err
}

// UploadBase64 stores an inline payload. Offload must be enabled because
// inline data has no durable location otherwise.
func (b *Base) UploadBase64(ctx context.Context, payload, contentType string) (string, error) {
	if !b.cfg.StorageOffload {
		return "", media.NewConfigurationError(b.name + " returns inline media and requires storageOffload=true")
	}
	if b.storage == nil {
		return "", media.NewConfigurationError("storage offload enabled but no storage service configured")
	}

	data, ct, err := DecodeBase64(payload)
	if err != nil {
		return "", media.NewProviderError(b.name, "invalid base64 payload", false).WithCause(err)
	}
	if contentType == "" {
		contentType = ct
	}
	return b.UploadBytes(ctx, data, contentType)
}

// UploadBytes stores raw media returned inline by a provider. Like
// UploadBase64 it requires offload.
func (b *Base) UploadBytes(ctx context.Context, data []byte, contentType string) (string, error) {
	if !b.cfg.StorageOffload {
		return "", media.NewConfigurationError(b.name + " returns inline media and requires storageOffload=true")
	}
	if b.storage == nil {
		return "", media.NewConfigurationError("storage offload enabled but no storage service configured")
	}
	start := b.now()
	hosted, err := b.upload(ctx, data, contentType)
	b.metrics.RecordOffload("inline", outcome(err), b.now().Sub(start))
	return hosted, err
}

// Fetch downloads a reference input (e.g. an image to inline into a
// provider payload) through the retry policy.
func (b *Base) Fetch(ctx context.Context, sourceURL string) ([]byte, string, error) {
	got, err := retry.DoWithResultTyped(b.retryer, ctx, func() (downloaded, error) {
		return b.download(ctx, sourceURL)
	})
	if err != nil {
		return nil, "", err
	}
	return got.data, got.contentType, nil
}

// OffloadResults re-hosts every URL concurrently, preserving order.
func (b *Base) OffloadResults(ctx context.Context, urls []string, mt media.MediaType, contentType string) ([]media.GenerationResult, error) {
	return b.offloadAll(ctx, urls, mt, func(ctx context.Context, u string) (string, error) {
		return b.DownloadAndUpload(ctx, u, contentType)
	})
}

// OffloadBase64Results uploads inline payloads concurrently, preserving order.
func (b *Base) OffloadBase64Results(ctx context.Context, payloads []string, mt media.MediaType, contentType string) ([]media.GenerationResult, error) {
	return b.offloadAll(ctx, payloads, mt, func(ctx context.Context, p string) (string, error) {
		return b.UploadBase64(ctx, p, contentType)
	})
}

func (b *Base) offloadAll(ctx context.Context, items []string, mt media.MediaType, fn func(context.Context, string) (string, error)) ([]media.GenerationResult, error) {
	results := make([]media.GenerationResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(offloadConcurrency)
	for i, item := range items {
		g.Go(func() error {
			u, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = media.GenerationResult{Type: mt, URL: u}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Base) upload(ctx context.Context, data []byte, contentType string) (string, error) {
	hosted, err := b.storage.UploadBuffer(ctx, data, b.cfg.PathPrefix(), contentType)
	if err == nil {
		return hosted, nil
	}
	b.logger.Error("offload upload failed", zap.Int("bytes", len(data)), zap.Error(err))
	if types.IsErrorCode(err, types.ErrStorageUpload) || types.IsErrorCode(err, types.ErrConfiguration) {
		return "", err
	}
	return "", media.NewStorageUploadError("upload generated media", err)
}

func (b *Base) download(ctx context.Context, sourceURL string) (downloaded, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return downloaded{}, media.NewInvalidRequestError(fmt.Sprintf("invalid media url %q", RedactURL(sourceURL)))
	}
	if b.downloadAuth != nil {
		for k, v := range b.downloadAuth(req.URL) {
			req.Header.Set(k, v)
		}
	}
	resp, err := b.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = RedactURL(ue.URL)
		}
		return downloaded{}, media.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return downloaded{}, media.MapHTTPError(resp.StatusCode, "", b.name)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return downloaded{}, media.Classify(err).WithRetryable(true)
	}
	if len(data) > maxDownloadBytes {
		return downloaded{}, media.NewStorageUploadError("generated media exceeds download limit", nil)
	}
	return downloaded{data: data, contentType: resp.Header.Get("Content-Type")}, nil
}

// RedactURL drops userinfo, query and fragment, which is where signed URLs
// and provider keys live. Unparseable input is replaced entirely.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// DecodeBase64 decodes a raw or data-URI payload and returns the declared
// content type, if any.
func DecodeBase64(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	var contentType string
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data uri")
		}
		meta := payload[len("data:"):comma]
		contentType = strings.TrimSuffix(meta, ";base64")
		payload = payload[comma+1:]
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(payload); err == nil {
			return data, contentType, nil
		}
	}
	return nil, "", fmt.Errorf("payload is not base64")
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
