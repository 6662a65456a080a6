package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/mediagen/api/handlers"
	"github.com/BaSui01/mediagen/config"
	"github.com/BaSui01/mediagen/internal/database"
	"github.com/BaSui01/mediagen/internal/httpclient"
	"github.com/BaSui01/mediagen/internal/metrics"
	"github.com/BaSui01/mediagen/internal/server"
	"github.com/BaSui01/mediagen/internal/taskstore"
	"github.com/BaSui01/mediagen/internal/telemetry"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/BaSui01/mediagen/media/retry"
	"github.com/BaSui01/mediagen/service"
	"github.com/BaSui01/mediagen/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🧩 组件装配（serve 与 dispatch 共用）
// =============================================================================

// components 是一次进程生命周期内共享的协作者
type components struct {
	storage *storage.Service
	tasks   taskstore.Store
	pool    *database.PoolManager
	repo    *database.TaskRepository
	service *service.Service
}

// buildComponents 按配置装配存储、任务索引、结果库和调度服务。
// Redis / 数据库不可用时降级为进程内索引 / 不记录结果。
func buildComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, collector *metrics.Collector) (*components, error) {
	c := &components{}

	st, err := newStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	c.storage = st

	if cfg.Redis.Enabled {
		rs, err := taskstore.NewRedisStore(taskstore.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			logger.Warn("Redis not available, pending tasks kept in memory", zap.Error(err))
		} else {
			c.tasks = rs
		}
	}
	if c.tasks == nil {
		c.tasks = taskstore.NewMemoryStore()
	}

	if cfg.Database.Enabled {
		if err := c.openDatabase(ctx, cfg.Database, logger, collector); err != nil {
			logger.Warn("Database not available, task outcomes not recorded", zap.Error(err))
		}
	}

	opts := service.Options{
		Deps: base.Deps{
			HTTPClient: httpclient.New(httpclient.Options{
				Timeout: cfg.Dispatch.HTTPTimeout,
				Logger:  logger,
				Headers: map[string]string{"User-Agent": "mediagen/" + Version},
				Observe: collector.RecordProviderRequest,
			}),
			Storage:     st,
			Logger:      logger,
			Metrics:     collector,
			Monitor:     service.NewLogMonitor(logger, collector),
			RetryPolicy: retryPolicy(cfg.Dispatch.Retry),
			Poll: base.PollOptions{
				Interval:           cfg.Dispatch.PollInterval,
				MaxDuration:        cfg.Dispatch.PollMaxDuration,
				ExponentialBackoff: cfg.Dispatch.ExponentialBackoff,
			},
		},
		Tasks:            c.tasks,
		PendingTTL:       cfg.Dispatch.PendingTaskTTL,
		Logger:           logger,
		TrustedEndpoints: cfg.Dispatch.TrustedEndpoints,
	}
	if c.repo != nil {
		opts.Records = c.repo
	}
	c.service = service.New(opts)
	return c, nil
}

func (c *components) openDatabase(ctx context.Context, dbCfg config.DatabaseConfig, logger *zap.Logger, collector *metrics.Collector) error {
	db, err := database.Open(dbCfg)
	if err != nil {
		return err
	}
	pool, err := database.NewPoolManager(db, database.PoolConfigFrom(dbCfg), logger, collector.RecordDBConnections)
	if err != nil {
		return err
	}
	repo := database.NewTaskRepository(pool.DB())
	if err := repo.AutoMigrate(ctx); err != nil {
		_ = pool.Close()
		return fmt.Errorf("auto-migrate task records: %w", err)
	}
	c.pool, c.repo = pool, repo
	logger.Info("Database connected", zap.String("driver", dbCfg.Driver))
	return nil
}

// Close 关闭任务索引和数据库连接
func (c *components) Close() error {
	var errs []error
	if c.tasks != nil {
		errs = append(errs, c.tasks.Close())
	}
	if c.pool != nil {
		errs = append(errs, c.pool.Close())
	}
	return errors.Join(errs...)
}

// newStorage 根据驱动初始化对象存储。driver=none 时返回未初始化的服务，
// 需要转存的请求会得到 CONFIGURATION_ERROR。
func newStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*storage.Service, error) {
	svc := storage.NewService(
		storage.WithLogger(logger),
		storage.WithMaxDownloadBytes(cfg.MaxDownloadBytes),
	)

	var backend storage.Backend
	switch cfg.Driver {
	case "s3":
		b, err := storage.NewS3Backend(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
			ACL:             cfg.S3.ACL,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	case "filesystem":
		b, err := storage.NewFileStore(cfg.LocalRoot, cfg.LocalBaseURL)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		logger.Info("Object storage disabled")
		return svc, nil
	}

	if err := svc.Init(backend); err != nil {
		return nil, err
	}
	logger.Info("Object storage initialized", zap.String("driver", cfg.Driver))
	return svc, nil
}

func retryPolicy(c config.RetryConfig) *retry.RetryPolicy {
	p := retry.DefaultRetryPolicy()
	p.MaxRetries = c.MaxRetries
	if c.InitialDelay > 0 {
		p.InitialDelay = c.InitialDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.Multiplier > 0 {
		p.Multiplier = c.Multiplier
	}
	p.Jitter = c.Jitter
	return p
}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 MediaGen 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	metricsCollector *metrics.Collector
	telemetry        *telemetry.Providers
	components       *components

	// rate limiter 清理与后台 sweeper 的生命周期
	backgroundCancel context.CancelFunc
	sweeperDone      chan struct{}
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start 启动所有服务（非阻塞）
func (s *Server) Start() error {
	ctx := context.Background()

	otelProviders, err := telemetry.Init(ctx, s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = otelProviders

	s.metricsCollector = metrics.NewCollector("mediagen", prometheus.DefaultRegisterer, s.logger)

	comps, err := buildComponents(ctx, s.cfg, s.logger, s.metricsCollector)
	if err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}
	s.components = comps

	bgCtx, cancel := context.WithCancel(context.Background())
	s.backgroundCancel = cancel
	s.startSweeper(bgCtx)

	if err := s.startHTTPServer(bgCtx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// Handler 构建带完整中间件链的 API handler
func (s *Server) Handler(ctx context.Context) http.Handler {
	health := handlers.NewHealthHandler(s.logger)
	health.RegisterCheck(handlers.NewPingCheck("taskstore", s.components.tasks.Ping))
	if s.components.pool != nil {
		health.RegisterCheck(handlers.NewPingCheck("database", s.components.pool.Ping))
	}
	if s.cfg.Storage.Driver != "" && s.cfg.Storage.Driver != "none" {
		// 存储不可用时生成仍可返回上游 URL，只降级
		st := s.components.storage
		health.RegisterCheck(handlers.NewSoftCheck("storage", func(context.Context) error {
			if !st.Initialized() {
				return errors.New("object storage not initialized")
			}
			return nil
		}))
	}

	mux := http.NewServeMux()
	handlers.Routes(mux,
		handlers.NewGenerationHandler(s.components.service, s.logger),
		handlers.NewAdapterHandler(s.components.service, s.logger),
		health,
	)
	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/version"}
	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		MetricsMiddleware(s.metricsCollector),
		RequestLogger(s.logger, skipAuthPaths...),
		RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger),
	)
}

// startSweeper 启动后台待恢复任务检查（dispatch.sweep_interval > 0 时）
func (s *Server) startSweeper(ctx context.Context) {
	d := s.cfg.Dispatch
	if d.SweepInterval <= 0 {
		return
	}
	sweeper := service.NewSweeper(s.components.service, service.SweeperOptions{
		Interval: d.SweepInterval,
		Workers:  d.SweepWorkers,
		MinAge:   d.SweepMinAge,
	})
	s.sweeperDone = make(chan struct{})
	go func() {
		defer close(s.sweeperDone)
		sweeper.Run(ctx)
	}()
}

func (s *Server) startHTTPServer(ctx context.Context) error {
	s.httpManager = server.NewManager("api", s.Handler(ctx),
		server.ConfigFrom(s.cfg.Server, s.cfg.Server.HTTPPort), s.logger)

	// 钩子按注册的逆序执行：先停后台任务，再关遥测，最后关闭依赖组件
	s.httpManager.OnShutdown(func(context.Context) error {
		return s.components.Close()
	})
	s.httpManager.OnShutdown(func(ctx context.Context) error {
		return s.telemetry.Shutdown(ctx)
	})
	s.httpManager.OnShutdown(func(ctx context.Context) error {
		s.stopBackground()
		if s.sweeperDone == nil {
			return nil
		}
		select {
		case <-s.sweeperDone:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("sweeper did not stop: %w", ctx.Err())
		}
	})
	return s.httpManager.Start()
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager("metrics", mux,
		server.ConfigFrom(s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown 等待 SIGINT / SIGTERM 或服务器错误后优雅关闭
func (s *Server) WaitForShutdown() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := s.httpManager.Run(ctx)
	return errors.Join(err, s.Shutdown())
}

func (s *Server) stopBackground() {
	if s.backgroundCancel != nil {
		s.backgroundCancel()
	}
}

// Shutdown 关闭 Metrics 服务器。HTTP 服务器及其钩子由 Run 负责。
func (s *Server) Shutdown() error {
	s.logger.Info("Starting graceful shutdown...")
	s.stopBackground()
	var err error
	if s.metricsManager != nil {
		err = s.metricsManager.Shutdown(context.Background())
	}
	s.logger.Info("Graceful shutdown completed")
	return err
}
