package api

import (
	"time"

	"github.com/BaSui01/mediagen/media"
)

// GenerateRequest 是 POST /v1/generations 的请求体
type GenerateRequest struct {
	Config  media.ProviderConfig           `json:"config"`
	Request media.UnifiedGenerationRequest `json:"request"`
}

// ResumeRequest 是 resume 的可选请求体。
// Config 为空时从待恢复索引中取 adapter 与模型。
type ResumeRequest struct {
	Config *media.ProviderConfig `json:"config,omitempty"`
}

// AdapterInfo adapter 目录项
type AdapterInfo struct {
	Name        string            `json:"name"`
	Media       []media.MediaType `json:"media"`
	Polling     bool              `json:"polling"`
	Description string            `json:"description"`
}

// PendingTaskInfo 待恢复任务
type PendingTaskInfo struct {
	TaskID    string    `json:"taskId"`
	Adapter   string    `json:"adapter"`
	Model     string    `json:"model"`
	SessionID string    `json:"sessionId,omitempty"`
	Progress  *float64  `json:"progress,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
