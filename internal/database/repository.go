package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = errors.New("task record not found")

// TaskRecord 一次调度的结果
type TaskRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Adapter      string    `gorm:"size:64;index:idx_task_records_adapter_task" json:"adapter"`
	Model        string    `gorm:"size:128" json:"model"`
	TaskID       string    `gorm:"size:255;index:idx_task_records_adapter_task" json:"taskId,omitempty"`
	SessionID    string    `gorm:"size:128;index" json:"sessionId,omitempty"`
	Status       string    `gorm:"size:16;index" json:"status"`
	MediaType    string    `gorm:"size:16" json:"mediaType,omitempty"`
	ResultURLs   []string  `gorm:"serializer:json" json:"resultUrls,omitempty"`
	Progress     *float64  `json:"progress,omitempty"`
	ErrorCode    string    `gorm:"size:32" json:"errorCode,omitempty"`
	ErrorMessage string    `gorm:"type:text" json:"errorMessage,omitempty"`
	Retryable    bool      `json:"retryable"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 表名
func (TaskRecord) TableName() string { return "mediagen_task_records" }

// Apply 用一次调度或恢复的响应覆盖结果字段。
func (r *TaskRecord) Apply(resp *media.AdapterResponse) {
	if resp == nil {
		return
	}
	r.Status = string(resp.Status)
	if resp.TaskID != "" {
		r.TaskID = resp.TaskID
	}
	r.Progress = resp.Progress
	r.ResultURLs = nil
	r.MediaType = ""
	for _, res := range resp.Results {
		r.ResultURLs = append(r.ResultURLs, res.URL)
		if r.MediaType == "" {
			r.MediaType = string(res.Type)
		}
	}
	r.ErrorCode, r.ErrorMessage, r.Retryable = "", "", false
	if resp.Error != nil {
		r.ErrorCode = resp.Error.Code
		r.ErrorMessage = resp.Error.Message
		r.Retryable = resp.Error.IsRetryable
	}
}

// ListFilter 列表查询条件，零值字段不参与过滤。
type ListFilter struct {
	Adapter   string
	Status    string
	SessionID string
	Limit     int
}

// TaskRepository 任务结果仓储
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建仓储
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// AutoMigrate 创建或更新表结构
func (r *TaskRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&TaskRecord{})
}

// Create 写入一条新记录，ID 为空时生成 UUID。
func (r *TaskRepository) Create(ctx context.Context, rec *TaskRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create task record: %w", err)
	}
	return nil
}

// Get 按主键查询
func (r *TaskRepository) Get(ctx context.Context, id string) (*TaskRecord, error) {
	var rec TaskRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task record: %w", err)
	}
	return &rec, nil
}

// FindByTaskID 返回某 adapter 下该 taskId 的最新记录
func (r *TaskRepository) FindByTaskID(ctx context.Context, adapter, taskID string) (*TaskRecord, error) {
	var rec TaskRecord
	err := r.db.WithContext(ctx).
		Where("adapter = ? AND task_id = ?", adapter, taskID).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task record: %w", err)
	}
	return &rec, nil
}

// UpdateOutcome 把恢复结果写回已有记录；找不到时新建一条。
func (r *TaskRepository) UpdateOutcome(ctx context.Context, adapter, model, taskID string, resp *media.AdapterResponse) (*TaskRecord, error) {
	var out *TaskRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec TaskRecord
		err := tx.Where("adapter = ? AND task_id = ?", adapter, taskID).
			Order("created_at DESC").
			First(&rec).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec = TaskRecord{ID: uuid.NewString(), Adapter: adapter, Model: model, TaskID: taskID}
		case err != nil:
			return err
		}
		rec.Apply(resp)
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update task record: %w", err)
	}
	return out, nil
}

// List 按创建时间倒序返回记录
func (r *TaskRepository) List(ctx context.Context, f ListFilter) ([]TaskRecord, error) {
	q := r.db.WithContext(ctx).Model(&TaskRecord{})
	if f.Adapter != "" {
		q = q.Where("adapter = ?", f.Adapter)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var recs []TaskRecord
	if err := q.Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list task records: %w", err)
	}
	return recs, nil
}
