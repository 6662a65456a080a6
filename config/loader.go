// =============================================================================
// 📦 MediaGen 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("MEDIAGEN").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
//
// 注意：这里的环境变量只由二进制读取；调度核心本身只读取
// AI_PROVIDER_<MODEL>_API_KEY。
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 MediaGen 的完整配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Dispatch  DispatchConfig  `yaml:"dispatch" envPrefix:"DISPATCH_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每个客户端 IP 的限流
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 允许访问 API 的密钥，为空则不鉴权
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
}

// DispatchConfig 调度层默认参数。
// PollInterval / PollMaxDuration 为 0 时使用各 adapter 自带的默认值。
type DispatchConfig struct {
	HTTPTimeout        time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	PollInterval       time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	PollMaxDuration    time.Duration `yaml:"poll_max_duration" env:"POLL_MAX_DURATION"`
	ExponentialBackoff bool          `yaml:"exponential_backoff" env:"EXPONENTIAL_BACKOFF"`
	PendingTaskTTL     time.Duration `yaml:"pending_task_ttl" env:"PENDING_TASK_TTL"`
	// 后台恢复待处理任务，SweepInterval 为 0 时关闭
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	SweepWorkers  int           `yaml:"sweep_workers" env:"SWEEP_WORKERS"`
	SweepMinAge   time.Duration `yaml:"sweep_min_age" env:"SWEEP_MIN_AGE"`
	Retry         RetryConfig   `yaml:"retry" envPrefix:"RETRY_"`
	// 可与 AI_PROVIDER_*_API_KEY 一起使用的自定义 apiEndpoint
	TrustedEndpoints []string `yaml:"trusted_endpoints" env:"TRUSTED_ENDPOINTS"`
}

// RetryConfig 下载重试策略
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER"`
	Jitter       bool          `yaml:"jitter" env:"JITTER"`
}

// StorageConfig 对象存储配置
type StorageConfig struct {
	// 驱动: s3, filesystem, none
	Driver           string   `yaml:"driver" env:"DRIVER"`
	MaxDownloadBytes int64    `yaml:"max_download_bytes" env:"MAX_DOWNLOAD_BYTES"`
	S3               S3Config `yaml:"s3" envPrefix:"S3_"`
	LocalRoot        string   `yaml:"local_root" env:"LOCAL_ROOT"`
	LocalBaseURL     string   `yaml:"local_base_url" env:"LOCAL_BASE_URL"`
}

// S3Config S3 / S3 兼容存储
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	Region          string `yaml:"region" env:"REGION"`
	Endpoint        string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"USE_PATH_STYLE"`
	PublicBaseURL   string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
	ACL             string `yaml:"acl" env:"ACL"`
}

// RedisConfig Redis 配置（待恢复任务索引）
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig 数据库配置（任务结果记录）
type DatabaseConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 驱动类型: postgres, mysql, sqlite
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Insecure     bool    `yaml:"insecure" env:"INSECURE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath  string
	envPrefix   string
	environment map[string]string
	validators  []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: "MEDIAGEN"}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithEnvironment 用给定的键值替代进程环境（测试用）
func (l *Loader) WithEnvironment(environ map[string]string) *Loader {
	l.environment = environ
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置；文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// loadFromEnv 从环境变量覆盖，例如 MEDIAGEN_SERVER_HTTP_PORT
func (l *Loader) loadFromEnv(cfg *Config) error {
	opts := env.Options{Environment: l.environment}
	if l.envPrefix != "" {
		opts.Prefix = strings.TrimSuffix(l.envPrefix, "_") + "_"
	}
	return env.ParseWithOptions(cfg, opts)
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Dispatch.PollInterval < 0 || c.Dispatch.PollMaxDuration < 0 {
		errs = append(errs, "dispatch poll durations must not be negative")
	}
	if c.Dispatch.SweepInterval < 0 || c.Dispatch.SweepWorkers < 0 {
		errs = append(errs, "dispatch sweep settings must not be negative")
	}
	if c.Dispatch.PollInterval > 0 && c.Dispatch.PollMaxDuration > 0 &&
		c.Dispatch.PollMaxDuration < c.Dispatch.PollInterval {
		errs = append(errs, "dispatch.poll_max_duration must be >= poll_interval")
	}

	switch c.Storage.Driver {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, "storage.s3.bucket is required for the s3 driver")
		}
	case "filesystem":
		if c.Storage.LocalRoot == "" {
			errs = append(errs, "storage.local_root is required for the filesystem driver")
		}
	case "", "none":
	default:
		errs = append(errs, fmt.Sprintf("unsupported storage driver %q", c.Storage.Driver))
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
