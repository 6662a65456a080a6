// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package types 提供 MediaGen 的全局共享错误体系。

# 概述

types 是最底层的公共包，不依赖任何内部包。调度层、存储层与 HTTP 层
共享同一套 ErrorCode 闭合集合，所有失败最终都被归一化为 *Error。

# 主要能力

  - Error / ErrorCode：结构化错误，含 HTTPStatus、Retryable、Provider、Details、Fields
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
