// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 HTTP 服务器生命周期：非阻塞启动、优雅关闭与关闭钩子。

  - Manager：封装一个 http.Server（API 或 /metrics），Start 后台运行，
    Run 阻塞到 ctx 结束或服务异常退出，再按超时优雅关闭。
  - Config：监听地址、读写/空闲超时、请求头上限与关闭超时。

关闭钩子（OnShutdown）在 HTTP 排空后依注册的逆序执行，
用于释放数据库、Redis 与遥测 exporter。
*/
package server
