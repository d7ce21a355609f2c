package xmetrics

import (
	"context"
	"strconv"
)

// Kind 表示跨度类型。
type Kind int

const (
	// KindInternal 进程内操作，例如队列排空。
	KindInternal Kind = iota
	// KindClient 对外调用，例如 HTTP 请求和凭据刷新。
	KindClient
)

// String 返回 Kind 的可读名称。
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindClient:
		return "Client"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Status 表示操作结果。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// Attr 是一个观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 描述一次观测跨度。
type SpanOptions struct {
	// Component 组件名称，例如 "xapi"。
	Component string
	// Operation 操作名称，例如 "Refresh"。
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 是跨度结束时的结果。Status 为空时由 Err 推导。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

// Span 是一次进行中的观测。
type Span interface {
	End(result Result)
}

// Observer 开始观测跨度。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 不记录任何内容。
type NoopObserver struct{}

// Start 原样返回 ctx（nil 时为 context.Background()）和空跨度。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度。
type NoopSpan struct{}

// End 不做任何处理。
func (NoopSpan) End(Result) {}

// Start 通过 observer 开始观测。
// 返回值保证非 nil：nil ctx 替换为 context.Background()，
// nil observer 或 observer 返回的 nil span 都退化为 NoopSpan。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

func resolveStatus(result Result) Status {
	if result.Status != "" {
		return result.Status
	}
	if result.Err != nil {
		return StatusError
	}
	return StatusOK
}
