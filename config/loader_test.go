// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)

	// 轮询参数未设置时由 adapter 决定
	assert.Zero(t, cfg.Dispatch.PollInterval)
	assert.Zero(t, cfg.Dispatch.PollMaxDuration)
	assert.False(t, cfg.Dispatch.ExponentialBackoff)

	// 重试默认值：共 3 次尝试
	assert.Equal(t, 2, cfg.Dispatch.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Dispatch.Retry.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.Retry.MaxDelay)

	assert.Equal(t, "none", cfg.Storage.Driver)
	assert.Equal(t, "mediagen:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvironment(map[string]string{}).Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  api_keys: ["k1", "k2"]

dispatch:
  poll_interval: 5s
  poll_max_duration: 2m
  exponential_backoff: true
  retry:
    max_retries: 4

storage:
  driver: s3
  s3:
    bucket: media-bucket
    region: eu-central-1
    public_base_url: https://cdn.example.com

log:
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		WithEnvironment(map[string]string{}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.PollMaxDuration)
	assert.True(t, cfg.Dispatch.ExponentialBackoff)
	assert.Equal(t, 4, cfg.Dispatch.Retry.MaxRetries)
	// 未在 YAML 中出现的字段保留默认值
	assert.Equal(t, 30*time.Second, cfg.Dispatch.Retry.MaxDelay)
	assert.Equal(t, "media-bucket", cfg.Storage.S3.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0o644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		WithEnvironment(map[string]string{
			"MEDIAGEN_SERVER_HTTP_PORT":            "7070",
			"MEDIAGEN_SERVER_API_KEYS":             "a,b",
			"MEDIAGEN_DISPATCH_POLL_INTERVAL":      "10s",
			"MEDIAGEN_DISPATCH_RETRY_JITTER":       "true",
			"MEDIAGEN_DISPATCH_SWEEP_INTERVAL":     "2m",
			"MEDIAGEN_STORAGE_DRIVER":              "filesystem",
			"MEDIAGEN_STORAGE_LOCAL_ROOT":          "/var/lib/mediagen",
			"MEDIAGEN_STORAGE_S3_USE_PATH_STYLE":   "true",
			"MEDIAGEN_TELEMETRY_SAMPLE_RATE":       "0.25",
			"MEDIAGEN_DATABASE_CONN_MAX_IDLE_TIME": "1m",
			"AI_PROVIDER_FLUX_PRO_API_KEY":         "ignored-by-loader",
		}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort, "环境变量优先于 YAML")
	assert.Equal(t, []string{"a", "b"}, cfg.Server.APIKeys)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.PollInterval)
	assert.True(t, cfg.Dispatch.Retry.Jitter)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.SweepInterval)
	assert.Equal(t, 4, cfg.Dispatch.SweepWorkers)
	assert.Equal(t, "filesystem", cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/mediagen", cfg.Storage.LocalRoot)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRate)
	assert.Equal(t, time.Minute, cfg.Database.ConnMaxIdleTime)
}

func TestLoader_CustomPrefix(t *testing.T) {
	cfg, err := NewLoader().
		WithEnvPrefix("MG").
		WithEnvironment(map[string]string{"MG_LOG_LEVEL": "warn"}).
		Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	_, err := NewLoader().
		WithEnvironment(map[string]string{"MEDIAGEN_SERVER_HTTP_PORT": "not-a-number"}).
		Load()
	assert.Error(t, err)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).
		WithEnvironment(map[string]string{}).
		Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_Validator(t *testing.T) {
	_, err := NewLoader().
		WithEnvironment(map[string]string{"MEDIAGEN_STORAGE_DRIVER": "s3"}).
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.s3.bucket")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid HTTP port"},
		{"negative poll interval", func(c *Config) { c.Dispatch.PollInterval = -time.Second }, "must not be negative"},
		{"max below interval", func(c *Config) {
			c.Dispatch.PollInterval = time.Minute
			c.Dispatch.PollMaxDuration = time.Second
		}, "poll_max_duration"},
		{"unknown storage", func(c *Config) { c.Storage.Driver = "gcs" }, "unsupported storage driver"},
		{"filesystem root", func(c *Config) { c.Storage.Driver = "filesystem" }, "local_root"},
		{"db driver", func(c *Config) { c.Database.Enabled = true; c.Database.Driver = "oracle" }, "unsupported database driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "u:p@tcp(db:3306)/n?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "file::memory:"}
	assert.Equal(t, "file::memory:", lite.DSN())

	assert.Equal(t, "", (&DatabaseConfig{Driver: "x"}).DSN())
}
