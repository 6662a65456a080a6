package handlers

import (
	"net/http"

	"github.com/BaSui01/mediagen/api"
	"github.com/BaSui01/mediagen/media/factory"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

// CatalogService adapter 目录能力
type CatalogService interface {
	Adapters() []factory.Spec
	Schema(name string) (*jsonschema.Schema, error)
}

// AdapterHandler adapter 目录与参数 Schema
type AdapterHandler struct {
	svc    CatalogService
	logger *zap.Logger
}

// NewAdapterHandler 创建处理器
func NewAdapterHandler(svc CatalogService, logger *zap.Logger) *AdapterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdapterHandler{svc: svc, logger: logger.With(zap.String("handler", "adapters"))}
}

// HandleList GET /v1/adapters
func (h *AdapterHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	specs := h.svc.Adapters()
	out := make([]api.AdapterInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, api.AdapterInfo{
			Name:        s.Name,
			Media:       s.Media,
			Polling:     s.Polling,
			Description: s.Description,
		})
	}
	WriteSuccess(w, out)
}

// HandleSchema GET /v1/adapters/{name}/schema，直接返回 JSON Schema 文档
func (h *AdapterHandler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.svc.Schema(r.PathValue("name"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, schema)
}
