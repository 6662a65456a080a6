package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/types"
)

// NewInvalidRequestError 请求未通过基础校验。
func NewInvalidRequestError(msg string) *types.Error {
	return types.NewError(types.ErrInvalidRequest, msg)
}

// NewInvalidParametersError carries one message per violated field.
func NewInvalidParametersError(fields []string) *types.Error {
	msg := "invalid parameters"
	if len(fields) > 0 {
		msg = "invalid parameters: " + strings.Join(fields, "; ")
	}
	return types.NewError(types.ErrInvalidParameters, msg).WithFields(fields...)
}

// NewProviderError reports a provider-declared failure that did not come with
// a meaningful HTTP status (e.g. a task that finished as FAILED).
func NewProviderError(provider, msg string, retryable bool) *types.Error {
	return types.NewError(types.ErrProviderError, msg).
		WithProvider(provider).
		WithRetryable(retryable)
}

// NewPollingTimeoutError 轮询在截止时间内未到达终态。
func NewPollingTimeoutError(taskID string, maxDuration time.Duration) *types.Error {
	return types.NewError(types.ErrPollingTimeout,
		fmt.Sprintf("task %s did not reach a terminal state within %s", taskID, maxDuration)).
		WithDetail("taskId", taskID).
		WithDetail("maxDurationSeconds", maxDuration.Seconds())
}

// NewPollingNotSupportedError 同步 adapter 被要求查询任务状态。
func NewPollingNotSupportedError(adapter string) *types.Error {
	return types.NewError(types.ErrPollingNotSupported,
		fmt.Sprintf("polling not supported by %s", adapter)).WithProvider(adapter)
}

// NewStorageUploadError 结果转存失败。
func NewStorageUploadError(msg string, cause error) *types.Error {
	return types.NewError(types.ErrStorageUpload, msg).WithCause(cause)
}

// NewConfigurationError 部署或装配错误。
func NewConfigurationError(msg string) *types.Error {
	return types.NewError(types.ErrConfiguration, msg)
}

// UnknownAdapterError is raised by the factory for an unregistered name.
type UnknownAdapterError struct {
	Name  string
	Known []string
}

// NewUnknownAdapterError sorts the known names for a stable message.
func NewUnknownAdapterError(name string, known []string) *UnknownAdapterError {
	k := append([]string(nil), known...)
	sort.Strings(k)
	return &UnknownAdapterError{Name: name, Known: k}
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q (known adapters: %s)", e.Name, strings.Join(e.Known, ", "))
}

// MapHTTPError 将 HTTP 状态码映射为 PROVIDER_ERROR，并标记是否可重试。
func MapHTTPError(status int, msg, provider string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := types.NewError(types.ErrProviderError, msg).
		WithHTTPStatus(status).
		WithProvider(provider).
		WithDetail("httpStatus", status)

	switch status {
	case http.StatusUnauthorized:
		e.WithDetail("reason", "unauthorized")
	case http.StatusForbidden:
		e.WithDetail("reason", "forbidden")
	case http.StatusTooManyRequests:
		e.WithDetail("reason", "rate_limited").WithRetryable(true)
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "balance") {
			e.WithDetail("reason", "quota_exceeded")
		} else {
			e.WithDetail("reason", "bad_request")
		}
	case 529: // overloaded
		e.WithDetail("reason", "overloaded").WithRetryable(true)
	default:
		if status >= 500 {
			e.WithDetail("reason", "upstream").WithRetryable(true)
		}
	}
	return e
}

// ReadErrorMessage extracts a human message from a provider error body.
// Falls back to the raw text.
func ReadErrorMessage(body []byte) string {
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &probe); err == nil {
		if len(probe.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			}
			if json.Unmarshal(probe.Error, &nested) == nil && nested.Message != "" {
				if nested.Type != "" {
					return fmt.Sprintf("%s (type: %s)", nested.Message, nested.Type)
				}
				return nested.Message
			}
			var s string
			if json.Unmarshal(probe.Error, &s) == nil && s != "" {
				return s
			}
		}
		switch {
		case probe.Message != "":
			return probe.Message
		case probe.Msg != "":
			return probe.Msg
		case len(probe.Detail) > 0:
			var s string
			if json.Unmarshal(probe.Detail, &s) == nil && s != "" {
				return s
			}
			return string(probe.Detail)
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 512 {
		text = text[:512] + "..."
	}
	return text
}

// Classify maps any error raised during dispatch into the closed taxonomy.
func Classify(err error) *types.Error {
	if err == nil {
		return nil
	}
	if e, ok := types.AsError(err); ok {
		return e
	}

	var unknown *UnknownAdapterError
	if errors.As(err, &unknown) {
		return types.NewError(types.ErrUnknownAdapter, unknown.Error()).
			WithDetail("knownAdapters", unknown.Known)
	}

	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrNetworkError, "request canceled").WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrNetworkError, "request timed out").WithCause(err).WithRetryable(true)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return types.NewError(types.ErrNetworkError, "network error").WithCause(err).WithRetryable(true)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return types.NewError(types.ErrProviderError, "unexpected provider response").WithCause(err)
	}

	return types.NewError(types.ErrInternalError, err.Error()).WithCause(err)
}

// ToErrorDetail renders a classified error for the response envelope.
func ToErrorDetail(e *types.Error) *ErrorDetail {
	if e == nil {
		return nil
	}
	var details map[string]any
	if len(e.Details) > 0 || len(e.Fields) > 0 || e.Provider != "" {
		details = make(map[string]any, len(e.Details)+2)
		for k, v := range e.Details {
			details[k] = v
		}
		if len(e.Fields) > 0 {
			details["fields"] = e.Fields
		}
		if e.Provider != "" {
			details["provider"] = e.Provider
		}
	}
	out := &ErrorDetail{
		Code:        string(e.Code),
		Message:     e.Message,
		IsRetryable: e.Retryable,
	}
	if details != nil {
		out.Details = details
	}
	return out
}

// Failed builds an ERROR response from any error.
func Failed(err error) *AdapterResponse {
	e := Classify(err)
	return &AdapterResponse{
		Status:  StatusError,
		Message: e.Message,
		Error:   ToErrorDetail(e),
	}
}

// ShouldReport reports whether the error class goes to the ErrorMonitor.
func ShouldReport(e *types.Error) bool {
	return e != nil && (e.Code == types.ErrProviderError || e.Code == types.ErrInternalError)
}
