// Package pool 提供有界 goroutine 池，用于后台任务（例如待恢复任务的批量检查）
// 的并发控制。worker 按需创建，空闲超时后回收，至少保留一个。
package pool
