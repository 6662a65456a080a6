package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/internal/database"
	"github.com/BaSui01/mediagen/internal/taskstore"
	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/BaSui01/mediagen/media/factory"
	"github.com/BaSui01/mediagen/types"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

// DefaultPendingTTL 待恢复任务在索引中的保留时间
const DefaultPendingTTL = 24 * time.Hour

// ErrTaskNotFound is returned by Resume when no config is given and the
// task id is not in the pending index.
var ErrTaskNotFound = errors.New("task not found")

// Recorder persists dispatch outcomes. *database.TaskRepository satisfies it.
type Recorder interface {
	Create(ctx context.Context, rec *database.TaskRecord) error
	UpdateOutcome(ctx context.Context, adapter, model, taskID string, resp *media.AdapterResponse) (*database.TaskRecord, error)
}

// Options 服务依赖
type Options struct {
	Deps base.Deps
	// Tasks 为 nil 时使用进程内索引
	Tasks taskstore.Store
	// Records 为 nil 时不持久化
	Records    Recorder
	PendingTTL time.Duration
	Logger     *zap.Logger
	// TrustedEndpoints 允许使用服务端环境变量凭证的 apiEndpoint（URL 或主机名）。
	// 未列出的自定义 endpoint 只能配合请求自带的 storedAuthKey 使用。
	TrustedEndpoints []string
}

// Service 编排一次生成请求的完整生命周期
type Service struct {
	deps    base.Deps
	tasks   taskstore.Store
	records Recorder
	ttl     time.Duration
	logger  *zap.Logger
	trusted map[string]bool
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tasks := opts.Tasks
	if tasks == nil {
		tasks = taskstore.NewMemoryStore()
	}
	ttl := opts.PendingTTL
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	deps := opts.Deps
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Service{
		deps:    deps,
		tasks:   tasks,
		records: opts.Records,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "service")),
		trusted: originSet(opts.TrustedEndpoints),
	}
}

// Generate builds the adapter for cfg and dispatches req. The only Go error
// is a setup failure such as an unknown adapter; every dispatch outcome is
// carried by the response.
func (s *Service) Generate(ctx context.Context, cfg media.ProviderConfig, req *media.UnifiedGenerationRequest) (*media.AdapterResponse, error) {
	if err := s.checkEndpoint(cfg); err != nil {
		return nil, err
	}
	adapter, err := factory.CreateAdapter(cfg, s.deps)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &media.UnifiedGenerationRequest{}
	}

	resp := adapter.Dispatch(ctx, req)

	rec := &database.TaskRecord{
		Adapter:   cfg.AdapterName,
		Model:     cfg.ModelIdentifier,
		SessionID: req.SessionID,
	}
	rec.Apply(resp)
	s.record(ctx, rec)

	if resp.Status == media.StatusProcessing && resp.TaskID != "" {
		s.index(ctx, taskstore.PendingTask{
			TaskID:    resp.TaskID,
			Config:    cfg,
			SessionID: req.SessionID,
			Progress:  resp.Progress,
		})
	}
	return resp, nil
}

// Resume performs one status check for taskID. When cfg.AdapterName is
// blank the owning config is read from the pending index.
func (s *Service) Resume(ctx context.Context, cfg media.ProviderConfig, taskID string) (*media.AdapterResponse, error) {
	if taskID == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "taskId is required")
	}

	pending, err := s.tasks.Get(ctx, taskID)
	switch {
	case err == nil && cfg.AdapterName == "":
		key := cfg.StoredAuthKey
		cfg = pending.Config
		cfg.StoredAuthKey = key
	case errors.Is(err, taskstore.ErrNotFound):
		pending = nil
		if cfg.AdapterName == "" {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
	case err != nil:
		return nil, fmt.Errorf("load pending task: %w", err)
	}

	// 索引里的 config 不含凭证，恢复时可能改用环境变量，需要再检查一次
	if err := s.checkEndpoint(cfg); err != nil {
		return nil, err
	}
	adapter, err := factory.CreateAdapter(cfg, s.deps)
	if err != nil {
		return nil, err
	}
	resumer, ok := adapter.(media.TaskResumer)
	if !ok {
		return media.Failed(media.NewPollingNotSupportedError(adapter.Name())), nil
	}

	resp := resumer.Resume(ctx, taskID)
	if resp.TaskID == "" {
		resp.TaskID = taskID
	}
	s.update(ctx, cfg, taskID, resp)

	switch resp.Status {
	case media.StatusProcessing:
		task := taskstore.PendingTask{TaskID: taskID, Config: cfg, Progress: resp.Progress}
		if pending != nil {
			task.SessionID = pending.SessionID
			task.CreatedAt = pending.CreatedAt
		}
		s.index(ctx, task)
	default:
		if err := s.tasks.Delete(ctx, taskID); err != nil {
			s.logger.Warn("remove pending task failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}
	return resp, nil
}

// ListPending returns tasks still awaiting resume.
func (s *Service) ListPending(ctx context.Context) ([]taskstore.PendingTask, error) {
	return s.tasks.List(ctx)
}

// DeleteObject removes an offloaded object. Offload outcomes are never
// rolled back automatically; this is the caller's explicit cleanup.
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	if s.deps.Storage == nil {
		return media.NewConfigurationError("object storage is not configured")
	}
	if err := s.deps.Storage.DeleteFile(ctx, key); err != nil {
		return err
	}
	s.logger.Info("object deleted", zap.String("key", key))
	return nil
}

// Adapters lists the registered adapters.
func (s *Service) Adapters() []factory.Spec {
	return factory.Specs()
}

// Schema returns the JSON Schema of an adapter's parameters.
func (s *Service) Schema(name string) (*jsonschema.Schema, error) {
	if _, ok := factory.Lookup(name); !ok {
		return nil, media.NewUnknownAdapterError(name, factory.Names())
	}
	adapter, err := factory.CreateAdapter(media.ProviderConfig{AdapterName: name}, s.deps)
	if err != nil {
		return nil, err
	}
	sp, ok := adapter.(factory.SchemaProvider)
	if !ok {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	return sp.ParamsSchema(), nil
}

// Ping checks the pending index.
func (s *Service) Ping(ctx context.Context) error {
	return s.tasks.Ping(ctx)
}

func (s *Service) record(ctx context.Context, rec *database.TaskRecord) {
	if s.records == nil {
		return
	}
	if err := s.records.Create(ctx, rec); err != nil {
		s.logger.Error("record dispatch outcome failed",
			zap.String("adapter", rec.Adapter), zap.String("task_id", rec.TaskID), zap.Error(err))
	}
}

func (s *Service) update(ctx context.Context, cfg media.ProviderConfig, taskID string, resp *media.AdapterResponse) {
	if s.records == nil {
		return
	}
	if _, err := s.records.UpdateOutcome(ctx, cfg.AdapterName, cfg.ModelIdentifier, taskID, resp); err != nil {
		s.logger.Error("update task record failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func (s *Service) index(ctx context.Context, task taskstore.PendingTask) {
	if err := s.tasks.Put(ctx, task, s.ttl); err != nil {
		s.logger.Error("index pending task failed", zap.String("task_id", task.TaskID), zap.Error(err))
	}
}

// checkEndpoint refuses to pair a server-held credential with an endpoint
// chosen by the caller. A blank endpoint means the adapter's built-in one.
func (s *Service) checkEndpoint(cfg media.ProviderConfig) error {
	ep := strings.TrimSpace(cfg.APIEndpoint)
	if ep == "" {
		return nil
	}
	if _, source := factory.ResolveCredential(cfg, os.LookupEnv); source != factory.SourceEnv {
		return nil
	}
	if s.trusted[origin(ep)] {
		return nil
	}
	s.logger.Warn("untrusted endpoint with server credential rejected",
		zap.String("adapter", cfg.AdapterName),
		zap.String("endpoint", base.RedactURL(ep)))
	return types.NewError(types.ErrInvalidRequest,
		"apiEndpoint is not trusted for server-side credentials; supply storedAuthKey or use the default endpoint").
		WithHTTPStatus(http.StatusForbidden)
}

func originSet(endpoints []string) map[string]bool {
	set := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if o := origin(ep); o != "" {
			set[o] = true
		}
	}
	return set
}

// origin normalizes an endpoint to scheme://host[:port]; a bare host is
// taken as https.
func origin(ep string) string {
	ep = strings.TrimSpace(ep)
	if ep == "" {
		return ""
	}
	if !strings.Contains(ep, "://") {
		ep = "https://" + ep
	}
	u, err := url.Parse(ep)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
