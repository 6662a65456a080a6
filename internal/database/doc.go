// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的连接池管理与任务结果记录。

# 概述

Open 按配置选择 postgres、mysql 或 sqlite（纯 Go 的 glebarez 驱动）
方言；PoolManager 统一管理连接池参数、后台健康检查与事务重试；
TaskRepository 持久化每次调度的结果，供服务层查询与恢复后更新。

# 核心类型

  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()。
  - PoolConfig：最大空闲/打开连接数、生命周期与健康检查间隔。
  - TaskRecord：一次调度的结果行（adapter、模型、状态、taskId、结果 URL、错误码）。
  - TaskRepository：TaskRecord 的增改查。

适配器本身从不写库，记录只由 service 层完成。
*/
package database
