package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/BaSui01/mediagen/internal/pool"
	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/factory"
	"go.uber.org/zap"
)

// SweeperOptions 后台恢复参数
type SweeperOptions struct {
	Interval time.Duration
	Workers  int
	// MinAge 只检查距上次更新超过 MinAge 的任务，避免与客户端自己的 resume 抢跑
	MinAge time.Duration
}

// Sweeper periodically resumes pending tasks so that results get recorded
// and offloaded even when the caller never comes back.
//
// Only tasks whose credential resolves from the environment are swept: the
// index never stores keys, and a resume without a key would fail and drop
// the entry a caller could still resume with its own key.
type Sweeper struct {
	svc      *Service
	pool     *pool.Pool
	interval time.Duration
	minAge   time.Duration
	logger   *zap.Logger

	lookupEnv func(string) (string, bool)
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewSweeper creates a sweeper over svc's pending index.
func NewSweeper(svc *Service, opts SweeperOptions) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = pool.DefaultConfig().MaxWorkers
	}
	logger := svc.logger.With(zap.String("component", "sweeper"))
	return &Sweeper{
		svc: svc,
		pool: pool.New(pool.Config{
			MaxWorkers: workers,
			QueueSize:  workers * 4,
			PanicHandler: func(r any) {
				logger.Error("resume panicked", zap.Any("panic", r))
			},
		}),
		interval:  opts.Interval,
		minAge:    opts.MinAge,
		logger:    logger,
		lookupEnv: os.LookupEnv,
		now:       time.Now,
		inflight:  make(map[string]struct{}),
	}
}

// Run sweeps every interval until ctx is done, then drains in-flight
// resumes.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.pool.Close()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce submits one resume per eligible pending task and returns how
// many were submitted. Tasks rejected by a full pool wait for the next sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	tasks, err := s.svc.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	submitted := 0
	for _, task := range tasks {
		if s.minAge > 0 && now.Sub(task.UpdatedAt) < s.minAge {
			continue
		}
		if _, source := factory.ResolveCredential(task.Config, s.lookupEnv); source == factory.SourceNone {
			s.logger.Debug("skip task without environment credential",
				zap.String("task_id", task.TaskID), zap.String("adapter", task.Config.AdapterName))
			continue
		}
		if !s.claim(task.TaskID) {
			continue
		}

		taskID := task.TaskID
		err := s.pool.Submit(ctx, func(ctx context.Context) error {
			defer s.release(taskID)
			return s.resume(ctx, taskID)
		})
		if err != nil {
			s.release(taskID)
			if errors.Is(err, pool.ErrPoolFull) {
				break
			}
			return submitted, err
		}
		submitted++
	}
	return submitted, nil
}

func (s *Sweeper) resume(ctx context.Context, taskID string) error {
	resp, err := s.svc.Resume(ctx, media.ProviderConfig{}, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return nil
		}
		s.logger.Warn("resume failed", zap.String("task_id", taskID), zap.Error(err))
		return err
	}
	s.logger.Debug("task swept", zap.String("task_id", taskID), zap.String("status", string(resp.Status)))
	return nil
}

func (s *Sweeper) claim(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[taskID]; busy {
		return false
	}
	s.inflight[taskID] = struct{}{}
	return true
}

func (s *Sweeper) release(taskID string) {
	s.mu.Lock()
	delete(s.inflight, taskID)
	s.mu.Unlock()
}

// Stats exposes the worker pool counters.
func (s *Sweeper) Stats() pool.Stats {
	return s.pool.Stats()
}
