// 版权所有 2024 MediaGen Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package music 提供音乐生成 adapter。

  - SunoAdapter: 异步任务，/suno/create + /suno/task/{id}
  - MinimaxAdapter: 同步返回 hex 音频或 URL

MinimaxAdapter 的 hex 输出必须开启 storageOffload。
*/
package music
