// Package xexpiry 提供会话过期广播。
//
// 凭据刷新失败时，刷新协调器调用 Notifier.Broadcast，
// 与之无关的组件（如 xuser 会话存储）通过 Subscribe 注册监听，
// 自行清理本地会话状态。协调器不感知具体监听者。
//
//	n := xexpiry.New()
//	stop := n.Subscribe(xexpiry.ListenerFunc(func(ctx context.Context, _ xexpiry.Event) {
//		store.Clear(ctx)
//	}))
//	defer stop()
package xexpiry
