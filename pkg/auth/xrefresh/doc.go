// Package xrefresh 提供访问凭据过期时的单飞刷新协调器。
//
// # 状态机
//
//	IDLE --(过期失败到达)--> REFRESHING   到达者成为驱动者，发起唯一一次刷新
//	REFRESHING --(刷新成功)--> IDLE       按到达顺序分发新凭据，所有请求各自重放
//	REFRESHING --(刷新失败)--> IDLE       清空队列，全部以 *RefreshError 结束，广播一次会话过期
//
// 刷新进行中到达的过期失败不会再次发起刷新，也不会访问网络，只进入等待队列。
//
// # 使用
//
// Coordinator 由传输层（见 xapi）在遇到过期失败时调用：
//
//	coord, _ := xrefresh.New(refresher,
//		xrefresh.WithNotifier(expiry),
//		xrefresh.WithOnRefreshed(client.SetCredential),
//	)
//	err := coord.Authorize(ctx, req) // req 实现 Replayable
//
// # 取消与超时
//
// 刷新调用使用 context.WithoutCancel，驱动者取消不会连带其他等待者失败；
// 刷新没有独立超时，由传输层超时兜底。排队后的请求不可取消。
//
// # 重试
//
// 默认刷新失败即终止会话。WithRefreshAttempts(n) 可在同一轮内对临时性错误
// （实现 Retryable() bool 且返回 true）做有限次退避重试，底层使用 avast/retry-go。
package xrefresh
