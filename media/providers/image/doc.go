// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package image 提供图像生成 adapter。

# 支持的 Provider

  - FluxAdapter: Black Forest Labs Flux，异步任务，x-key 认证
  - OpenAIImageAdapter: OpenAI Images API，同步返回 url 或 b64_json
  - GeminiImageAdapter: Gemini generateContent，同步返回 inline base64

同步 adapter 返回 base64 时必须开启 storageOffload。
*/
package image
