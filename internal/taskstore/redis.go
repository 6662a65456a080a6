package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	// 键前缀，例如 "mediagen:"
	KeyPrefix string
}

// RedisStore 基于 Redis 的待恢复任务索引。
// 每个任务一个 JSON 字符串键，外加一个按创建时间排序的 ZSET 索引。
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore 连接 Redis 并校验可用性
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := NewRedisStoreFromClient(client, cfg.KeyPrefix, logger)
	s.logger.Info("task store initialized", zap.String("addr", cfg.Addr))
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "taskstore")),
		now:    time.Now,
	}
}

func (s *RedisStore) taskKey(id string) string { return s.prefix + "task:" + id }
func (s *RedisStore) indexKey() string         { return s.prefix + "tasks" }

func (s *RedisStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("task store is closed")
	}
	return nil
}

func (s *RedisStore) Put(ctx context.Context, task PendingTask, ttl time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	if existing, err := s.Get(ctx, task.TaskID); err == nil {
		task.CreatedAt = existing.CreatedAt
	}
	task = prepare(task, s.now())

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal pending task: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.taskKey(task.TaskID), data, ttl)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(task.CreatedAt.UnixMilli()), Member: task.TaskID})
		return nil
	})
	if err != nil {
		s.logger.Error("put pending task failed", zap.String("task_id", task.TaskID), zap.Error(err))
		return fmt.Errorf("put pending task: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*PendingTask, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, s.taskKey(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending task: %w", err)
	}
	var t PendingTask
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode pending task: %w", err)
	}
	return &t, nil
}

func (s *RedisStore) Delete(ctx context.Context, taskID string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.taskKey(taskID))
		p.ZRem(ctx, s.indexKey(), taskID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete pending task: %w", err)
	}
	return nil
}

// List 返回仍存活的条目；已过期的键会顺带从索引中移除。
func (s *RedisStore) List(ctx context.Context) ([]PendingTask, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.taskKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}

	var (
		out   []PendingTask
		stale []any
	)
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var t PendingTask
		if err := json.Unmarshal([]byte(str), &t); err != nil {
			s.logger.Warn("skipping undecodable pending task", zap.String("task_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, t)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("prune task index failed", zap.Error(err))
		}
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
