package taskstore

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/mediagen/media"
)

// ErrNotFound is returned when a task id is unknown or expired.
var ErrNotFound = errors.New("pending task not found")

// PendingTask records who owns a PROCESSING task.
// Config never carries a credential; it is resolved again on resume.
type PendingTask struct {
	TaskID    string               `json:"taskId"`
	Config    media.ProviderConfig `json:"config"`
	SessionID string               `json:"sessionId,omitempty"`
	Progress  *float64             `json:"progress,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Store is the pending task index.
type Store interface {
	Put(ctx context.Context, task PendingTask, ttl time.Duration) error
	Get(ctx context.Context, taskID string) (*PendingTask, error)
	Delete(ctx context.Context, taskID string) error
	// List returns live entries, oldest first.
	List(ctx context.Context) ([]PendingTask, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepare strips the credential and stamps times.
func prepare(task PendingTask, now time.Time) PendingTask {
	task.Config.StoredAuthKey = ""
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	return task
}
