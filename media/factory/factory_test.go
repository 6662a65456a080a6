package factory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/mediagen/media"
	"github.com/BaSui01/mediagen/media/base"
	"github.com/BaSui01/mediagen/media/providers/image"
	"github.com/BaSui01/mediagen/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func fastDeps() base.Deps {
	return base.Deps{
		Logger: zap.NewNop(),
		Poll:   base.PollOptions{Interval: time.Millisecond, MaxDuration: 2 * time.Second},
	}
}

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestEnvKeyName(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"flux-pro-1.1", "AI_PROVIDER_FLUX_PRO_1.1_API_KEY"},
		{"gen4_turbo", "AI_PROVIDER_GEN4_TURBO_API_KEY"},
		{"Veo-3.0-generate-001", "AI_PROVIDER_VEO_3.0_GENERATE_001_API_KEY"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnvKeyName(tt.model), tt.model)
	}
}

func TestResolveCredential(t *testing.T) {
	env := envOf(map[string]string{
		"AI_PROVIDER_FLUX_DEV_API_KEY": "from-env",
		"AI_PROVIDER_BLANK_API_KEY":    "   ",
	})

	t.Run("stored key wins", func(t *testing.T) {
		cfg := media.ProviderConfig{ModelIdentifier: "flux-dev", StoredAuthKey: "stored"}
		got, src := ResolveCredential(cfg, env)
		assert.Equal(t, "stored", got.StoredAuthKey)
		assert.Equal(t, SourceStored, src)
	})

	t.Run("blank stored key falls back to env", func(t *testing.T) {
		cfg := media.ProviderConfig{ModelIdentifier: "flux-dev", StoredAuthKey: "  "}
		got, src := ResolveCredential(cfg, env)
		assert.Equal(t, "from-env", got.StoredAuthKey)
		assert.Equal(t, SourceEnv, src)
		assert.Equal(t, "  ", cfg.StoredAuthKey, "input must not be modified")
	})

	t.Run("blank env value is ignored", func(t *testing.T) {
		got, src := ResolveCredential(media.ProviderConfig{ModelIdentifier: "blank"}, env)
		assert.Empty(t, got.StoredAuthKey)
		assert.Equal(t, SourceNone, src)
	})

	t.Run("nothing found", func(t *testing.T) {
		got, src := ResolveCredential(media.ProviderConfig{ModelIdentifier: "other"}, env)
		assert.Empty(t, got.StoredAuthKey)
		assert.Equal(t, SourceNone, src)
	})
}

func TestResolveCredential_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		model := rapid.StringMatching(`[a-z][a-z0-9.\-]{0,20}`).Draw(rt, "model")
		stored := rapid.StringMatching(`[ a-zA-Z0-9]{0,12}`).Draw(rt, "stored")
		envVal := rapid.StringMatching(`[ a-zA-Z0-9]{0,12}`).Draw(rt, "env")

		env := envOf(map[string]string{EnvKeyName(model): envVal})
		got, _ := ResolveCredential(media.ProviderConfig{ModelIdentifier: model, StoredAuthKey: stored}, env)

		switch {
		case strings.TrimSpace(stored) != "":
			if got.StoredAuthKey != stored {
				rt.Fatalf("stored key replaced: %q -> %q", stored, got.StoredAuthKey)
			}
		case strings.TrimSpace(envVal) != "":
			if got.StoredAuthKey != envVal {
				rt.Fatalf("env key not used: want %q got %q", envVal, got.StoredAuthKey)
			}
		default:
			if got.AuthKey() != "" {
				rt.Fatalf("unexpected key %q", got.StoredAuthKey)
			}
		}
	})
}

func TestEnvKeyName_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		model := rapid.StringMatching(`[a-zA-Z0-9][a-zA-Z0-9_.\-]{0,30}`).Draw(rt, "model")
		name := EnvKeyName(model)
		if !strings.HasPrefix(name, "AI_PROVIDER_") || !strings.HasSuffix(name, "_API_KEY") {
			rt.Fatalf("bad name %q", name)
		}
		if strings.Contains(name, "-") || name != strings.ToUpper(name) {
			rt.Fatalf("name not normalized: %q", name)
		}
	})
}

func TestCreateAdapter_Unknown(t *testing.T) {
	_, err := CreateAdapter(media.ProviderConfig{AdapterName: "NopeAdapter"}, fastDeps())
	require.Error(t, err)

	var unknown *media.UnknownAdapterError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "NopeAdapter", unknown.Name)
	assert.Contains(t, unknown.Known, image.FluxName)
	assert.Contains(t, err.Error(), "NopeAdapter")
}

func TestCreateAdapter_AllRegistered(t *testing.T) {
	want := []string{
		"DashScopeAdapter", "FluxAdapter", "GeminiImageAdapter", "JimengAdapter",
		"KieAdapter", "KlingAdapter", "MinimaxAdapter", "OpenAIImageAdapter",
		"ReplicateAdapter", "RunwayAdapter", "SunoAdapter", "VeoAdapter",
	}
	assert.Equal(t, want, Names())

	for _, name := range want {
		a, err := CreateAdapter(media.ProviderConfig{AdapterName: name, ModelIdentifier: "m"}, fastDeps())
		require.NoError(t, err, name)
		assert.Equal(t, name, a.Name())
		_, ok := a.(SchemaProvider)
		assert.True(t, ok, "%s should describe its parameters", name)
	}
}

func TestSpecs_PollingFlag(t *testing.T) {
	for _, s := range Specs() {
		a, err := CreateAdapter(media.ProviderConfig{AdapterName: s.Name, ModelIdentifier: "m"}, fastDeps())
		require.NoError(t, err)
		_, resumes := a.(media.TaskResumer)
		assert.Equal(t, s.Polling, resumes, s.Name)
		assert.NotEmpty(t, s.Media, s.Name)
	}
}

func TestRegister_Panics(t *testing.T) {
	assert.Panics(t, func() { Register(Spec{Name: "x"}) })
	assert.Panics(t, func() {
		Register(Spec{New: func(media.ProviderConfig, base.Deps) media.Adapter { return nil }})
	})
}

// 无存储密钥时从环境变量取 key，并用于真实请求头。
func TestCreateAdapter_EnvCredentialReachesProvider(t *testing.T) {
	ms := fixtures.NewMediaServer(t)

	var gotKey, gotPrompt string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/{model}", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-key")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPrompt, _ = body["prompt"].(string)
		_, _ = w.Write([]byte(`{"id":"t-1"}`))
	})
	mux.HandleFunc("GET /v1/get_result", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "t-1",
			"status": "Ready",
			"result": map[string]any{"sample": ms.URL + "/image.png"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("AI_PROVIDER_FLUX_DEV_API_KEY", "k-123")
	cfg := media.ProviderConfig{
		AdapterName:     image.FluxName,
		ModelIdentifier: "flux-dev",
		APIEndpoint:     srv.URL,
	}

	a, err := CreateAdapter(cfg, fastDeps())
	require.NoError(t, err)

	resp := a.Dispatch(context.Background(), &media.UnifiedGenerationRequest{Prompt: "a cat", NumberOfOutputs: 1})
	require.Equal(t, media.StatusSuccess, resp.Status, "%+v", resp.Error)
	assert.Equal(t, "k-123", gotKey)
	assert.Equal(t, "a cat", gotPrompt)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, ms.URL+"/image.png", resp.Results[0].URL)
}

func TestCreateAdapter_MissingCredentialStillConstructs(t *testing.T) {
	a, err := CreateAdapter(media.ProviderConfig{AdapterName: image.FluxName, ModelIdentifier: "no-such-model-xyz"}, fastDeps())
	require.NoError(t, err)
	assert.NotNil(t, a)
}
