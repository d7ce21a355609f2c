// Package xuser 维护登录用户会话：登录、登出、拉取当前用户、强制刷新凭据，
// 以及会话过期后的自动登出。
//
// 用户信息通过 Persister 持久化（内存或 Redis，键名默认 "user-store"），
// 进程重启后可用 Restore 恢复；访问凭据只保存在 xapi.Client 内存中。
//
//	expiry := xexpiry.New()
//	client, _ := xapi.New(cfg, xapi.WithNotifier(expiry))
//	store, _ := xuser.New(client, xuser.WithExpiry(expiry))
//	defer store.Close()
//	err := store.Login(ctx, xuser.Credentials{Email: "a@b.c", Password: "..."})
package xuser
