package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BaSui01/mediagen/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFluxSubmit(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/{model}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-key") != "k-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"flux-9"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dispatchBody(endpoint, adapter, prompt string) string {
	body, _ := json.Marshal(map[string]any{
		"config": map[string]any{
			"adapterName":     adapter,
			"modelIdentifier": "flux-dev",
			"apiEndpoint":     endpoint,
			"storedAuthKey":   "k-1",
		},
		"request": map[string]any{
			"prompt":     prompt,
			"parameters": map[string]any{"async": true},
		},
	})
	return string(body)
}

func TestRunDispatch_AsyncSubmit(t *testing.T) {
	srv := fakeFluxSubmit(t)
	var out bytes.Buffer

	code := runDispatch(nil, strings.NewReader(dispatchBody(srv.URL, "FluxAdapter", "a cat")), &out)
	require.Equal(t, exitOK, code)

	var resp media.AdapterResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, media.StatusProcessing, resp.Status)
	assert.Equal(t, "flux-9", resp.TaskID)
}

func TestRunDispatch_ErrorResponse(t *testing.T) {
	srv := fakeFluxSubmit(t)
	var out bytes.Buffer

	code := runDispatch(nil, strings.NewReader(dispatchBody(srv.URL, "FluxAdapter", "")), &out)
	assert.Equal(t, exitDispatched, code)

	var resp media.AdapterResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, media.StatusError, resp.Status)
	require.NotNil(t, resp.Error)
}

func TestRunDispatch_FromFile(t *testing.T) {
	srv := fakeFluxSubmit(t)
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(dispatchBody(srv.URL, "FluxAdapter", "a dog")), 0o600))

	var out bytes.Buffer
	assert.Equal(t, exitOK, runDispatch([]string{"--file", path}, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), `"taskId": "flux-9"`)
}

func TestRunDispatch_SetupErrors(t *testing.T) {
	t.Run("unknown adapter", func(t *testing.T) {
		var out bytes.Buffer
		code := runDispatch(nil, strings.NewReader(dispatchBody("http://127.0.0.1:1", "NopeAdapter", "x")), &out)
		assert.Equal(t, exitSetup, code)
		assert.Empty(t, out.String())
	})

	t.Run("unknown field", func(t *testing.T) {
		var out bytes.Buffer
		code := runDispatch(nil, strings.NewReader(`{"cfg":{}}`), &out)
		assert.Equal(t, exitSetup, code)
	})

	t.Run("missing file", func(t *testing.T) {
		var out bytes.Buffer
		code := runDispatch([]string{"--file", filepath.Join(t.TempDir(), "absent.json")}, nil, &out)
		assert.Equal(t, exitSetup, code)
	})
}
