// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的调度层指标采集能力，覆盖
HTTP 入口、Adapter 调度、任务轮询、结果转存与数据库五个维度。

# 概述

Collector 通过 promauto.With(reg) 注册指标，测试中可传入独立 Registry。
所有 Record* 方法对 nil 接收者安全，未启用指标时直接传 nil 即可。

# 主要能力

  - HTTP 指标：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx
  - 调度指标：按 adapter/status 计数与耗时，按 adapter/code 统计错误
  - 轮询指标：每次轮询循环的检查次数分布
  - 转存指标：url / base64 两类转存的结果与耗时
  - 出站指标：provider HTTP 调用按 host/status 计数
  - 数据库指标：活跃/空闲连接数 Gauge
*/
package metrics
