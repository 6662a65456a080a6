// Package api 定义 MediaGen HTTP API 的请求与响应结构。
//
// # 端点
//
//	POST   /v1/generations                 生成（同步轮询或 async 返回 PROCESSING）
//	POST   /v1/generations/{taskId}/resume 对 PROCESSING 任务做一次状态检查
//	GET    /v1/tasks                       待恢复任务
//	GET    /v1/adapters                    adapter 目录
//	GET    /v1/adapters/{name}/schema      adapter 参数的 JSON Schema
//	DELETE /v1/objects/{key...}            删除已转存对象
//	GET    /health, /healthz, /ready, /version
//
// # 认证
//
// 配置了 server.api_keys 时，请求需携带 X-API-Key 或 Authorization: Bearer。
package api
