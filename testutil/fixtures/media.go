// Package fixtures 提供测试数据工厂：存储服务、媒体服务器与示例请求。
package fixtures

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/storage"
)

// StorageBaseURL is the public URL prefix of NewMemoryStorage objects.
const StorageBaseURL = "https://cdn.mediagen.test"

// PNG is a minimal PNG header, enough for content sniffing.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

// MP4 is a minimal ftyp box.
var MP4 = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}

// NewMemoryStorage returns an initialized storage service backed by memory.
func NewMemoryStorage() (*storage.Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore(StorageBaseURL)
	return storage.NewService(storage.WithBackend(store)), store
}

// MediaServer serves generated media for download tests.
type MediaServer struct {
	*httptest.Server
	hits     atomic.Int64
	failures atomic.Int64
}

// NewMediaServer serves /image.png and /video.mp4. /flaky.png fails with
// 503 for the number of times set by FailNext.
func NewMediaServer(t *testing.T) *MediaServer {
	t.Helper()
	ms := &MediaServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		ms.hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(PNG)
	})
	mux.HandleFunc("/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		ms.hits.Add(1)
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(MP4)
	})
	mux.HandleFunc("/flaky.png", func(w http.ResponseWriter, r *http.Request) {
		ms.hits.Add(1)
		if ms.failures.Load() > 0 {
			ms.failures.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(PNG)
	})
	mux.HandleFunc("/missing.png", func(w http.ResponseWriter, r *http.Request) {
		ms.hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Close)
	return ms
}

// FailNext makes the next n /flaky.png requests fail.
func (m *MediaServer) FailNext(n int) { m.failures.Store(int64(n)) }

// Hits returns the number of requests served.
func (m *MediaServer) Hits() int { return int(m.hits.Load()) }

// ProviderConfig returns a config for adapter with offload disabled.
func ProviderConfig(adapter, endpoint string) media.ProviderConfig {
	return media.ProviderConfig{
		AdapterName:     adapter,
		ModelIdentifier: adapter + "-model",
		APIEndpoint:     endpoint,
		StoredAuthKey:   "test-key",
	}
}

// OffloadConfig is ProviderConfig with offload enabled under prefix "tests".
func OffloadConfig(adapter, endpoint string) media.ProviderConfig {
	cfg := ProviderConfig(adapter, endpoint)
	cfg.StorageOffload = true
	cfg.StoragePathPrefix = "tests"
	return cfg
}

// Request returns a simple prompt-only request.
func Request(prompt string) *media.UnifiedGenerationRequest {
	return &media.UnifiedGenerationRequest{Prompt: prompt, NumberOfOutputs: 1}
}
