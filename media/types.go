package media

import "strings"

// MediaType 生成结果的媒体类别。
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// ResponseStatus 是 Dispatch 返回给调用方的状态。
type ResponseStatus string

const (
	StatusSuccess    ResponseStatus = "SUCCESS"
	StatusProcessing ResponseStatus = "PROCESSING"
	StatusError      ResponseStatus = "ERROR"
)

// TaskState 是轮询单元的内部状态。
type TaskState string

const (
	TaskSucceeded  TaskState = "SUCCESS"
	TaskProcessing TaskState = "PROCESSING"
	TaskFailed     TaskState = "FAILED"
)

// DefaultStoragePathPrefix is used when a config leaves the prefix blank.
const DefaultStoragePathPrefix = "default"

// ProviderConfig selects and configures one adapter instance.
// It is built by the caller per dispatch and treated as read-only.
type ProviderConfig struct {
	AdapterName       string `json:"adapterName" yaml:"adapter_name"`
	ModelIdentifier   string `json:"modelIdentifier" yaml:"model_identifier"`
	APIEndpoint       string `json:"apiEndpoint" yaml:"api_endpoint"`
	APIFlavor         string `json:"apiFlavor,omitempty" yaml:"api_flavor"`
	StoredAuthKey     string `json:"storedAuthKey,omitempty" yaml:"stored_auth_key"`
	StorageOffload    bool   `json:"storageOffload" yaml:"storage_offload"`
	StoragePathPrefix string `json:"storagePathPrefix,omitempty" yaml:"storage_path_prefix"`
	ModelVersion      string `json:"modelVersion,omitempty" yaml:"model_version"`
}

// AuthKey returns the stored key, or "" when it is absent or blank.
func (c ProviderConfig) AuthKey() string {
	return strings.TrimSpace(c.StoredAuthKey)
}

// PathPrefix returns the storage prefix with the default applied.
func (c ProviderConfig) PathPrefix() string {
	if p := strings.Trim(strings.TrimSpace(c.StoragePathPrefix), "/"); p != "" {
		return p
	}
	return DefaultStoragePathPrefix
}

// Redacted returns a copy safe for logs and persistence.
func (c ProviderConfig) Redacted() ProviderConfig {
	if c.StoredAuthKey != "" {
		c.StoredAuthKey = "***"
	}
	return c
}

// UnifiedGenerationRequest is the provider-agnostic generation request.
type UnifiedGenerationRequest struct {
	Prompt          string         `json:"prompt"`
	InputImages     []string       `json:"inputImages,omitempty"`
	NumberOfOutputs int            `json:"numberOfOutputs"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
}

// Outputs returns the requested output count, at least 1.
func (r *UnifiedGenerationRequest) Outputs() int {
	if r.NumberOfOutputs < 1 {
		return 1
	}
	return r.NumberOfOutputs
}

// Param returns a raw parameter value.
func (r *UnifiedGenerationRequest) Param(key string) (any, bool) {
	if r.Parameters == nil {
		return nil, false
	}
	v, ok := r.Parameters[key]
	return v, ok
}

// BoolParam reads a boolean parameter; strings "true"/"1" are accepted.
func (r *UnifiedGenerationRequest) BoolParam(key string) bool {
	v, ok := r.Param(key)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		return s == "true" || s == "1" || s == "yes"
	}
	return false
}

// Clone returns a copy whose slices and maps can be mutated independently.
func (r *UnifiedGenerationRequest) Clone() *UnifiedGenerationRequest {
	out := *r
	if r.InputImages != nil {
		out.InputImages = append([]string(nil), r.InputImages...)
	}
	if r.Parameters != nil {
		out.Parameters = make(map[string]any, len(r.Parameters))
		for k, v := range r.Parameters {
			out.Parameters[k] = v
		}
	}
	return &out
}

// GenerationResult is one generated artifact.
type GenerationResult struct {
	Type     MediaType      `json:"type"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ErrorDetail is the structured error body of an ERROR response.
type ErrorDetail struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     any    `json:"details,omitempty"`
	IsRetryable bool   `json:"isRetryable"`
}

// AdapterResponse is returned by every Dispatch call.
// Results are only set when Status is SUCCESS.
type AdapterResponse struct {
	Status   ResponseStatus     `json:"status"`
	Results  []GenerationResult `json:"results,omitempty"`
	TaskID   string             `json:"taskId,omitempty"`
	Progress *float64           `json:"progress,omitempty"`
	Message  string             `json:"message,omitempty"`
	Error    *ErrorDetail       `json:"error,omitempty"`
}

// Succeeded builds a SUCCESS response.
func Succeeded(results ...GenerationResult) *AdapterResponse {
	return &AdapterResponse{Status: StatusSuccess, Results: results}
}

// Processing builds a PROCESSING response for a pending provider task.
func Processing(taskID string, progress *float64) *AdapterResponse {
	return &AdapterResponse{Status: StatusProcessing, TaskID: taskID, Progress: progress}
}

// TaskStatusResponse is one observation of a provider task.
type TaskStatusResponse struct {
	Status   TaskState `json:"status"`
	Output   []string  `json:"output,omitempty"`
	Error    string    `json:"error,omitempty"`
	Progress *float64  `json:"progress,omitempty"`
	// TimedOut 仅由轮询循环在截止时间到达时设置。
	TimedOut bool `json:"-"`
}

// IsTerminal reports whether polling should stop.
func (s *TaskStatusResponse) IsTerminal() bool {
	return s.Status == TaskSucceeded || s.Status == TaskFailed
}

// Progress returns a pointer to p clamped into [0, 1].
func Progress(p float64) *float64 {
	switch {
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	return &p
}
