/*
Package handlers 提供 MediaGen HTTP API 的请求处理器实现。

# 核心类型

  - GenerationHandler: 生成、恢复、待恢复任务列表与对象删除
  - AdapterHandler: adapter 目录与参数 JSON Schema
  - HealthHandler: /health、/healthz、/ready
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）

生成与恢复接口直接返回 AdapterResponse，只要请求能装配出 adapter
就一律以 200 应答；装配失败（例如未知 adapter）返回 400 UNKNOWN_ADAPTER。
*/
package handlers
