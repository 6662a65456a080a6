// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package storage 实现生成结果的对象存储转存（offload）。

# 概述

Service 是进程级共享的转存客户端，初始化后无状态，可被并发调用。
具体的存储介质由 Backend 决定：

  - S3Backend: 基于 aws-sdk-go-v2 的 S3 / S3 兼容存储
  - FileStore: 本地文件系统，供开发与测试环境使用
  - MemoryStore: 进程内存，供单元测试使用

未初始化的 Service 上的任何调用都会返回 CONFIGURATION_ERROR。

# 对象命名

对象键为 <prefix>/<epoch-ms>_<random-hex>.<ext>，扩展名优先由 content-type
推导，缺失时通过魔数识别 JPEG/PNG/GIF/WEBP，无法识别时回退为 png。
*/
package storage
