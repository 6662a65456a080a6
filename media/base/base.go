package base

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/mediagen/internal/httpclient"
	"github.com/BaSui01/mediagen/internal/metrics"
	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/retry"
	"github.com/BaSui01/mediagen/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BaSui01/mediagen/media/base"

// Deps are the process-wide collaborators handed to every adapter by the
// factory. Zero values fall back to sensible defaults.
type Deps struct {
	HTTPClient  *http.Client
	Storage     storage.Offloader
	Logger      *zap.Logger
	Metrics     *metrics.Collector
	Monitor     media.ErrorMonitor
	RetryPolicy *retry.RetryPolicy
	// Poll overrides adapter polling defaults field by field.
	Poll PollOptions
}

// Base is the shared helper composed into every adapter.
type Base struct {
	name      string
	cfg       media.ProviderConfig
	client    *http.Client
	storage   storage.Offloader
	retryer   retry.Retryer
	logger    *zap.Logger
	metrics   *metrics.Collector
	monitor   media.ErrorMonitor
	validator Validator
	tracer    trace.Tracer

	downloadAuth func(u *url.URL) map[string]string

	pollOverride PollOptions
	pollDefaults PollOptions

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option customizes a Base at adapter construction time.
type Option func(*Base)

// WithValidator installs the request schema.
func WithValidator(v Validator) Option {
	return func(b *Base) { b.validator = v }
}

// WithTimeout gives the adapter its own client timeout, e.g. for slow
// synchronous generation endpoints.
func WithTimeout(d time.Duration) Option {
	return func(b *Base) { b.client = httpclient.WithTimeout(b.client, d) }
}

// WithDownloadAuth supplies headers for fetching generated media. fn sees
// the target URL so credentials are only sent to the provider's own host.
func WithDownloadAuth(fn func(u *url.URL) map[string]string) Option {
	return func(b *Base) { b.downloadAuth = fn }
}

// WithPollDefaults sets adapter-specific polling defaults.
func WithPollDefaults(p PollOptions) Option {
	return func(b *Base) { b.pollDefaults = p }
}

// New builds the helper for one adapter instance.
func New(name string, cfg media.ProviderConfig, deps Deps, opts ...Option) *Base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("adapter", name), zap.String("model", cfg.ModelIdentifier))

	client := deps.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.Options{
			Logger:  logger,
			Observe: deps.Metrics.RecordProviderRequest,
		})
	}

	b := &Base{
		name:         name,
		cfg:          cfg,
		client:       client,
		storage:      deps.Storage,
		retryer:      retry.NewBackoffRetryer(deps.RetryPolicy, logger),
		logger:       logger,
		metrics:      deps.Metrics,
		monitor:      deps.Monitor,
		tracer:       otel.Tracer(tracerName),
		pollOverride: deps.Poll,
		sleep:        sleepContext,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.validator == nil {
		b.validator = PromptRequired{}
	}
	return b
}

// Name returns the adapter's registry name.
func (b *Base) Name() string { return b.name }

// Config returns the adapter's provider configuration.
func (b *Base) Config() media.ProviderConfig { return b.cfg }

// Logger returns the adapter-scoped logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// HTTPClient returns the client used for provider calls.
func (b *Base) HTTPClient() *http.Client { return b.client }

// AuthKey returns the resolved credential.
func (b *Base) AuthKey() string { return b.cfg.AuthKey() }

// Endpoint returns the configured API endpoint or def, without trailing slash.
func (b *Base) Endpoint(def string) string {
	if ep := strings.TrimSpace(b.cfg.APIEndpoint); ep != "" {
		return strings.TrimRight(ep, "/")
	}
	return strings.TrimRight(def, "/")
}

// Model returns the configured model identifier or def.
func (b *Base) Model(def string) string {
	if m := strings.TrimSpace(b.cfg.ModelIdentifier); m != "" {
		return m
	}
	return def
}
