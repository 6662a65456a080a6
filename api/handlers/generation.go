package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BaSui01/mediagen/api"
	"github.com/BaSui01/mediagen/internal/taskstore"
	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/service"
	"github.com/BaSui01/mediagen/types"
	"go.uber.org/zap"
)

// GenerationService 生成接口依赖的服务能力，由 *service.Service 实现
type GenerationService interface {
	Generate(ctx context.Context, cfg media.ProviderConfig, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error)
	Resume(ctx context.Context, cfg media.ProviderConfig, taskID string) (*media.AdapterResponse, error)
	ListPending(ctx context.Context) ([]taskstore.PendingTask, error)
	DeleteObject(ctx context.Context, key string) error
}

// GenerationHandler 生成与任务恢复
type GenerationHandler struct {
	svc    GenerationService
	logger *zap.Logger
}

// NewGenerationHandler 创建处理器
func NewGenerationHandler(svc GenerationService, logger *zap.Logger) *GenerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationHandler{svc: svc, logger: logger.With(zap.String("handler", "generation"))}
}

// HandleGenerate POST /v1/generations
func (h *GenerationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var body api.GenerateRequest
	if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(body.Config.AdapterName) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "config.adapterName is required", h.logger)
		return
	}

	resp, err := h.svc.Generate(r.Context(), body.Config, &body.Request)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HandleResume POST /v1/generations/{taskId}/resume
func (h *GenerationHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")

	var body api.ResumeRequest
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		if err := DecodeJSONBody(w, r, &body, h.logger); err != nil {
			return
		}
	}
	var cfg media.ProviderConfig
	if body.Config != nil {
		cfg = *body.Config
	}

	resp, err := h.svc.Resume(r.Context(), cfg, taskID)
	if errors.Is(err, service.ErrTaskNotFound) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HandleListPending GET /v1/tasks
func (h *GenerationHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListPending(r.Context())
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	out := make([]api.PendingTaskInfo, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, api.PendingTaskInfo{
			TaskID:    t.TaskID,
			Adapter:   t.Config.AdapterName,
			Model:     t.Config.ModelIdentifier,
			SessionID: t.SessionID,
			Progress:  t.Progress,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}
	WriteSuccess(w, out)
}

// HandleDeleteObject DELETE /v1/objects/{key...}
func (h *GenerationHandler) HandleDeleteObject(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := h.svc.DeleteObject(r.Context(), key); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
