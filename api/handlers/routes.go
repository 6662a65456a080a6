package handlers

import "net/http"

// Routes 把所有处理器挂到 mux 上（Go 1.22 方法路由）
func Routes(mux *http.ServeMux, gen *GenerationHandler, adapters *AdapterHandler, health *HealthHandler) {
	mux.HandleFunc("POST /v1/generations", gen.HandleGenerate)
	mux.HandleFunc("POST /v1/generations/{taskId}/resume", gen.HandleResume)
	mux.HandleFunc("GET /v1/tasks", gen.HandleListPending)
	mux.HandleFunc("DELETE /v1/objects/{key...}", gen.HandleDeleteObject)

	mux.HandleFunc("GET /v1/adapters", adapters.HandleList)
	mux.HandleFunc("GET /v1/adapters/{name}/schema", adapters.HandleSchema)

	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /ready", health.HandleReady)
}
