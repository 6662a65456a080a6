// Copyright (c) MediaGen Authors.
// Licensed under the MIT License.

/*
Package main 提供 MediaGen 服务端程序入口。

# 概述

cmd/mediagen 是媒体生成调度层的可执行入口，提供 HTTP API 服务、
一次性命令行调度、结果表迁移、健康检查和版本查询等子命令。程序支持
YAML 配置文件 + 环境变量加载、结构化日志（zap）和 Prometheus 指标采集。

# 核心类型

  - Server: 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、dispatch、migrate、health、version
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    Metrics、RequestLogger、RateLimiter（基于 IP）、APIKeyAuth
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Redis / 数据库 → 关闭 Metrics
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
