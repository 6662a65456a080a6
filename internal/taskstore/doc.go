/*
包 taskstore 保存返回 PROCESSING 的待恢复任务索引。

调用方在 Dispatch 返回 PROCESSING 后写入 PendingTask，之后通过 taskId
找回负责该任务的 adapter 与模型配置，再调用 Resume。条目带 TTL，过期后
视为不存在。

  - RedisStore：基于 go-redis 的实现，多实例共享。
  - MemoryStore：单进程实现，用于开发与测试。
*/
package taskstore
