/*
Package video 提供视频生成 adapter，全部基于异步任务加轮询。

  - RunwayAdapter: image_to_video / text_to_video
  - VeoAdapter: Gemini API predictLongRunning
  - KlingAdapter: 可灵，AK/SK 签发 JWT
  - JimengAdapter: 即梦 CVSync2Async 任务
  - DashScopeAdapter: 通义万相视频与文生图

Task ID 对调用方不透明，可直接交给 Resume。
*/
package video
