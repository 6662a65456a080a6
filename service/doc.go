// Package service 是调用方一侧的编排层：配置 → factory → Dispatch →
// 记录结果；以及待恢复任务的 Resume。
//
// 适配器只负责与 provider 交互，持久化与任务索引都在这里完成。
package service
