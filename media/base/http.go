package base

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/BaSui01/mediagen/media"
)

// maxResponseBytes bounds JSON bodies read from providers.
const maxResponseBytes = 32 << 20

// Request describes one JSON call to a provider.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	// Body is marshaled to JSON unless nil.
	Body any
}

// DoJSON sends r and decodes a 2xx body into out (nil skips decoding).
// Non-2xx statuses are mapped by media.MapHTTPError.
func (b *Base) DoJSON(ctx context.Context, r Request, out any) error {
	raw, err := b.DoRaw(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", b.name, err)
	}
	return nil
}

// DoRaw is DoJSON without decoding.
func (b *Base) DoRaw(ctx context.Context, r Request) ([]byte, error) {
	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	target := r.URL
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", b.name, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, media.NewConfigurationError(fmt.Sprintf("invalid endpoint %q: %v", target, err))
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, media.MapHTTPError(resp.StatusCode, media.ReadErrorMessage(raw), b.name)
	}
	return raw, nil
}

// BearerHeaders is the common Authorization header set.
func (b *Base) BearerHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.AuthKey()}
}

// PathID escapes a provider task id as a single URL path segment. Ids come
// back from callers on resume, so "." and ".." are refused and "/" is
// escaped.
func PathID(id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", media.NewInvalidRequestError(fmt.Sprintf("invalid task id %q", id))
	}
	return url.PathEscape(id), nil
}

// PathIDs escapes each "/"-separated segment of a hierarchical task id such
// as a long-running operation name.
func PathIDs(name string) (string, error) {
	segs := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for i, s := range segs {
		seg, err := PathID(s)
		if err != nil {
			return "", media.NewInvalidRequestError(fmt.Sprintf("invalid task id %q", name))
		}
		segs[i] = seg
	}
	return strings.Join(segs, "/"), nil
}
