/*
Package testutil 提供 MediaGen 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout，自动注册 Cleanup
  - 断言工具: AssertJSONEqual / AssertErrorCode / AssertEventuallyTrue
  - 时钟: FakeClock 可替换轮询循环中的 now 与 sleep
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/mocks: ScriptedChecker（按脚本返回任务状态）、MockAdapter、
    MockMonitor，均为并发安全并记录调用
  - testutil/fixtures: 内存存储服务、媒体下载服务器（httptest）、
    示例 ProviderConfig 与请求

# 使用示例

	ctx := testutil.TestContext(t)
	svc, store := fixtures.NewMemoryStorage()
	srv := fixtures.NewMediaServer(t)
*/
package testutil
