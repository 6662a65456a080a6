package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/mediagen/types"
	"go.uber.org/zap"
)

// Offloader is the upload primitive adapters depend on.
type Offloader interface {
	UploadBuffer(ctx context.Context, data []byte, pathPrefix, contentType string) (string, error)
	UploadFromURL(ctx context.Context, sourceURL, pathPrefix string) (string, error)
	DeleteFile(ctx context.Context, key string) error
}

// Backend is one storage medium.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of a stored object.
	URL(key string) string
}

// DefaultMaxDownloadBytes caps UploadFromURL downloads.
const DefaultMaxDownloadBytes int64 = 512 << 20

// Service implements Offloader on top of a Backend.
type Service struct {
	mu      sync.RWMutex
	backend Backend

	httpClient       *http.Client
	logger           *zap.Logger
	maxDownloadBytes int64
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithBackend initializes the service at construction time.
func WithBackend(b Backend) Option {
	return func(s *Service) { s.backend = b }
}

// WithHTTPClient sets the client used by UploadFromURL.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxDownloadBytes overrides DefaultMaxDownloadBytes.
func WithMaxDownloadBytes(n int64) Option {
	return func(s *Service) { s.maxDownloadBytes = n }
}

// NewService creates a Service. Without WithBackend it stays uninitialized
// until Init is called.
func NewService(opts ...Option) *Service {
	s := &Service{
		httpClient:       &http.Client{Timeout: 2 * time.Minute},
		logger:           zap.NewNop(),
		maxDownloadBytes: DefaultMaxDownloadBytes,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("component", "storage"))
	return s
}

// Init performs the one-time initialization.
func (s *Service) Init(b Backend) error {
	if b == nil {
		return types.NewError(types.ErrConfiguration, "storage backend is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		return types.NewError(types.ErrConfiguration, "storage service already initialized")
	}
	s.backend = b
	return nil
}

// Initialized reports whether a backend is configured.
func (s *Service) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend != nil
}

func (s *Service) getBackend() (Backend, error) {
	s.mu.RLock()
	b := s.backend
	s.mu.RUnlock()
	if b == nil {
		return nil, types.NewError(types.ErrConfiguration, "storage service not initialized")
	}
	return b, nil
}

// UploadBuffer stores data under pathPrefix and returns its public URL.
func (s *Service) UploadBuffer(ctx context.Context, data []byte, pathPrefix, contentType string) (string, error) {
	b, err := s.getBackend()
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", types.NewError(types.ErrStorageUpload, "refusing to upload empty object")
	}

	ext := ExtensionFor(contentType, data)
	if contentType == "" {
		contentType = ContentTypeFor(ext)
	}
	key := NewObjectKey(pathPrefix, ext, s.now())

	if err := b.Put(ctx, key, data, contentType); err != nil {
		s.logger.Warn("upload failed", zap.String("key", key), zap.Error(err))
		return "", types.NewError(types.ErrStorageUpload, "upload object "+key).WithCause(err).WithRetryable(true)
	}

	s.logger.Debug("object uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.String("content_type", contentType),
	)
	return b.URL(key), nil
}

// UploadFromURL downloads sourceURL and re-hosts it.
func (s *Service) UploadFromURL(ctx context.Context, sourceURL, pathPrefix string) (string, error) {
	if _, err := s.getBackend(); err != nil {
		return "", err
	}
	data, contentType, err := s.download(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	return s.UploadBuffer(ctx, data, pathPrefix, contentType)
}

// DeleteFile removes an object by key.
func (s *Service) DeleteFile(ctx context.Context, key string) error {
	b, err := s.getBackend()
	if err != nil {
		return err
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return types.NewError(types.ErrInvalidRequest, "object key is required")
	}
	if err := b.Delete(ctx, key); err != nil {
		return types.NewError(types.ErrStorageUpload, "delete object "+key).WithCause(err)
	}
	return nil
}

func (s *Service) download(ctx context.Context, sourceURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, "", types.NewError(types.ErrInvalidRequest, "invalid source url").WithCause(err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", types.NewError(types.ErrNetworkError, "download "+sourceURL).WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", types.NewError(types.ErrStorageUpload,
			fmt.Sprintf("download %s: unexpected status %d", sourceURL, resp.StatusCode)).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxDownloadBytes+1))
	if err != nil {
		return nil, "", types.NewError(types.ErrNetworkError, "read "+sourceURL).WithCause(err).WithRetryable(true)
	}
	if int64(len(data)) > s.maxDownloadBytes {
		return nil, "", types.NewError(types.ErrStorageUpload,
			fmt.Sprintf("download %s exceeds %d bytes", sourceURL, s.maxDownloadBytes))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

var _ Offloader = (*Service)(nil)
