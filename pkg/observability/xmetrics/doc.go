// Package xmetrics 定义 xtube 各组件共用的观测接口（tracing + metrics）。
//
// 业务代码只依赖 Observer/Span/Attr；默认 NoopObserver，
// 生产环境通过 NewOTelObserver 接入 OpenTelemetry。
//
// # 使用示例
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xrefresh",
//		Operation: "Refresh",
//		Kind:      xmetrics.KindClient,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// # 指标命名
//
//   - xtube.operation.total
//   - xtube.operation.duration
//
// 统一属性：component / operation / status。
package xmetrics
