// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package media 定义媒体生成调度层的统一契约。

# 概述

调用方构造 ProviderConfig 与 UnifiedGenerationRequest，通过 factory 得到
某个 Adapter，再调用 Dispatch。无论 provider 返回什么，调用方总是拿到一个
AdapterResponse：SUCCESS 携带结果，PROCESSING 携带任务 ID，ERROR 携带
结构化错误。

# 核心接口

  - Adapter: Name + Dispatch
  - TaskChecker: 异步 provider 的单次状态查询
  - TaskResumer: 对 PROCESSING 任务做一次检查并完成转存
  - ErrorMonitor: PROVIDER_ERROR / INTERNAL_ERROR 的外部上报

# 错误归一化

Classify 把任意错误映射到 types 包的闭合错误码集合；MapHTTPError 处理
provider 的 HTTP 失败，状态码 >= 500 与 429 视为可重试。
*/
package media
