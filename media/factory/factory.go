package factory

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/BaSui01/mediagen/media/providers/image"
	"github.com/BaSui01/mediagen/media/providers/multi"
	"github.com/BaSui01/mediagen/media/providers/music"
	"github.com/BaSui01/mediagen/media/providers/video"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

// Constructor builds an adapter from a config whose credential has already
// been resolved.
type Constructor func(cfg media.ProviderConfig, deps base.Deps) media.Adapter

// Spec describes one registered adapter.
type Spec struct {
	Name        string            `json:"name"`
	Media       []media.MediaType `json:"media"`
	Polling     bool              `json:"polling"`
	Description string            `json:"description"`
	New         Constructor       `json:"-"`
}

// SchemaProvider is implemented by adapters that describe their parameters.
type SchemaProvider interface {
	ParamsSchema() *jsonschema.Schema
}

var (
	mu       sync.RWMutex
	registry = map[string]Spec{}
)

func init() {
	builtin := []Spec{
		{Name: image.FluxName, Media: []media.MediaType{media.MediaImage}, Polling: true,
			Description: "Black Forest Labs Flux",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return image.NewFlux(c, d) }},
		{Name: image.OpenAIName, Media: []media.MediaType{media.MediaImage},
			Description: "OpenAI Images (DALL-E, gpt-image)",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return image.NewOpenAIImage(c, d) }},
		{Name: image.GeminiName, Media: []media.MediaType{media.MediaImage},
			Description: "Gemini image generation",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return image.NewGeminiImage(c, d) }},
		{Name: video.RunwayName, Media: []media.MediaType{media.MediaVideo}, Polling: true,
			Description: "Runway image/text to video",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return video.NewRunway(c, d) }},
		{Name: video.VeoName, Media: []media.MediaType{media.MediaVideo}, Polling: true,
			Description: "Google Veo",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return video.NewVeo(c, d) }},
		{Name: video.KlingName, Media: []media.MediaType{media.MediaVideo}, Polling: true,
			Description: "Kling video",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return video.NewKling(c, d) }},
		{Name: video.JimengName, Media: []media.MediaType{media.MediaVideo}, Polling: true,
			Description: "Jimeng (Volcengine) video",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return video.NewJimeng(c, d) }},
		{Name: video.DashScopeName, Media: []media.MediaType{media.MediaVideo, media.MediaImage}, Polling: true,
			Description: "Alibaba DashScope Wan",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return video.NewDashScope(c, d) }},
		{Name: multi.ReplicateName, Media: []media.MediaType{media.MediaImage, media.MediaVideo, media.MediaAudio}, Polling: true,
			Description: "Replicate predictions",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return multi.NewReplicate(c, d) }},
		{Name: music.SunoName, Media: []media.MediaType{media.MediaAudio}, Polling: true,
			Description: "Suno songs",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return music.NewSuno(c, d) }},
		{Name: music.MinimaxName, Media: []media.MediaType{media.MediaAudio},
			Description: "MiniMax music",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return music.NewMinimaxMusic(c, d) }},
		{Name: multi.KieName, Media: []media.MediaType{media.MediaImage, media.MediaVideo}, Polling: true,
			Description: "Kie task APIs",
			New:         func(c media.ProviderConfig, d base.Deps) media.Adapter { return multi.NewKie(c, d) }},
	}
	for _, s := range builtin {
		Register(s)
	}
}

// Register adds or replaces an adapter. It panics on an empty name or a
// nil constructor.
func Register(s Spec) {
	if strings.TrimSpace(s.Name) == "" || s.New == nil {
		panic("factory: Register requires a name and a constructor")
	}
	mu.Lock()
	defer mu.Unlock()
	registry[s.Name] = s
}

// Lookup returns the spec registered under name.
func Lookup(name string) (Spec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Names returns the registered adapter names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Specs returns every registered spec sorted by name.
func Specs() []Spec {
	names := Names()
	out := make([]Spec, 0, len(names))
	for _, n := range names {
		if s, ok := Lookup(n); ok {
			out = append(out, s)
		}
	}
	return out
}

// CreateAdapter resolves the credential and constructs the adapter named by
// cfg.AdapterName. An unregistered name yields *media.UnknownAdapterError.
// A missing credential is not an error.
func CreateAdapter(cfg media.ProviderConfig, deps base.Deps) (media.Adapter, error) {
	return createAdapter(cfg, deps, os.LookupEnv)
}

func createAdapter(cfg media.ProviderConfig, deps base.Deps, lookupEnv func(string) (string, bool)) (media.Adapter, error) {
	spec, ok := Lookup(cfg.AdapterName)
	if !ok {
		return nil, media.NewUnknownAdapterError(cfg.AdapterName, Names())
	}
	resolved, source := ResolveCredential(cfg, lookupEnv)
	if deps.Logger != nil {
		deps.Logger.Debug("creating adapter",
			zap.String("adapter", cfg.AdapterName),
			zap.String("model", cfg.ModelIdentifier),
			zap.String("credential_source", source))
	}
	return spec.New(resolved, deps), nil
}

// Credential sources reported by ResolveCredential.
const (
	SourceStored = "stored"
	SourceEnv    = "env"
	SourceNone   = "none"
)

// ResolveCredential returns cfg with StoredAuthKey filled in. A non-blank
// stored key is kept unchanged; otherwise AI_PROVIDER_<MODEL>_API_KEY is
// read through lookupEnv. The input config is not modified.
func ResolveCredential(cfg media.ProviderConfig, lookupEnv func(string) (string, bool)) (media.ProviderConfig, string) {
	if strings.TrimSpace(cfg.StoredAuthKey) != "" {
		return cfg, SourceStored
	}
	name := EnvKeyName(cfg.ModelIdentifier)
	if name == "" || lookupEnv == nil {
		return cfg, SourceNone
	}
	if v, ok := lookupEnv(name); ok && strings.TrimSpace(v) != "" {
		cfg.StoredAuthKey = v
		return cfg, SourceEnv
	}
	return cfg, SourceNone
}

// EnvKeyName derives the environment variable holding the key for a model:
// upper case, "-" replaced by "_". A blank model has no variable.
func EnvKeyName(modelID string) string {
	if strings.TrimSpace(modelID) == "" {
		return ""
	}
	return "AI_PROVIDER_" + strings.ReplaceAll(strings.ToUpper(modelID), "-", "_") + "_API_KEY"
}
