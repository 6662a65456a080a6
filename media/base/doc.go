// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package base 提供所有 adapter 共享的组合式辅助对象 Base。

# 概述

具体 adapter 持有一个 *Base，只实现与 provider 相关的部分：请求体、
端点、响应解析，以及异步 provider 的状态查询。Base 负责其余一切：

  - HTTP：DoJSON 统一完成序列化、错误映射与响应解码
  - 校验：ParamSchema 把 parameters 绑定到带 validate 标签的结构体并填充默认值
  - 轮询：PollTaskUntilComplete 实现 PROCESSING → SUCCESS / FAILED 状态机
  - 转存：DownloadAndUpload / UploadBase64 / OffloadResults
  - 归一化：NormalizeStatus、ParseProgress、AspectRatios.Snap
  - 兜底：Run / Guard 捕获所有错误与 panic，转换为 ERROR 响应

# 轮询参数优先级

请求 parameters（pollIntervalSeconds / maxDurationSeconds / exponentialBackoff）
高于 Deps.Poll，高于 adapter 的 WithPollDefaults，最后回落到 600s / 60s。
*/
package base
