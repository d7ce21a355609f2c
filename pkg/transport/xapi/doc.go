// Package xapi 提供带凭据过期自动刷新的 HTTP API 客户端。
//
// 每个请求都经过拦截器：
//
//   - 响应状态为 Config.UnauthorizedStatus（默认 401）视为凭据过期，
//     交给 xrefresh.Coordinator 单飞刷新后用新凭据重放一次；
//   - 响应体 message 等于 Config.InvalidTokenMessage（默认 "TokenExpired"）
//     视为凭据永久失效，调用以空结果成功返回，不刷新也不重放；
//   - 其余失败原样返回。
//
// # 使用
//
//	expiry := xexpiry.New()
//	client, err := xapi.New(&xapi.Config{Host: "https://api.example.com/api/v1"},
//		xapi.WithNotifier(expiry),
//	)
//	var out map[string]any
//	err = client.Get(ctx, "/videos", &out)
//
// 凭据以 Authorization: Bearer 头发送；刷新依赖的会话 Cookie 由内置的 Cookie Jar 保存。
// 每个逻辑请求带一个 X-Request-ID，重放沿用同一个 ID。
//
// # 配置文件
//
// LoadConfig 读取 YAML 或 JSON：
//
//	api:
//	  host: https://api.example.com/api/v1
//	  timeout: 15s
//	  refresh_path: /users/refresh-token
package xapi
