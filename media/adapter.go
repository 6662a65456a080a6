package media

import (
	"context"

	"github.com/BaSui01/mediagen/types"
)

// Adapter translates the unified contract to one provider's API.
// Dispatch never returns a Go error: every failure is an ERROR response.
type Adapter interface {
	Name() string
	Dispatch(ctx context.Context, req *UnifiedGenerationRequest) *AdapterResponse
}

// TaskChecker is implemented by adapters whose provider runs async tasks.
type TaskChecker interface {
	CheckTaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error)
}

// TaskResumer performs one status check for a task returned as PROCESSING
// and, on success, finishes the offload step.
type TaskResumer interface {
	Resume(ctx context.Context, taskID string) *AdapterResponse
}

// ErrorMonitor receives PROVIDER_ERROR and INTERNAL_ERROR faults.
type ErrorMonitor interface {
	Report(ctx context.Context, adapter string, err *types.Error)
}

// PollingUnsupported gives synchronous adapters the default CheckTaskStatus.
// Calling it is a programming error.
type PollingUnsupported struct {
	AdapterName string
}

// CheckTaskStatus always fails.
func (p PollingUnsupported) CheckTaskStatus(_ context.Context, _ string) (*TaskStatusResponse, error) {
	return nil, NewPollingNotSupportedError(p.AdapterName)
}
