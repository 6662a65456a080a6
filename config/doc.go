// Package config 提供 MediaGen 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 MEDIAGEN_）的顺序合并，
// 覆盖 HTTP 服务、调度参数、对象存储、Redis、数据库、日志与遥测。
package config
