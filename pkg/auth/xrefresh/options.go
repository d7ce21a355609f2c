package xrefresh

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/omeyang/xtube/pkg/observability/xmetrics"
)

const (
	// DefaultRefreshAttempts 默认只调用一次刷新操作，失败即视为会话过期。
	DefaultRefreshAttempts = 1

	// DefaultRefreshRetryDelay 启用多次尝试时的初始退避间隔。
	DefaultRefreshRetryDelay = 200 * time.Millisecond
)

// Notifier 接收刷新失败时的会话过期广播。*xexpiry.Notifier 实现了此接口。
type Notifier interface {
	Broadcast(ctx context.Context)
}

// options 是 Coordinator 的可选配置。
type options struct {
	logger      *slog.Logger
	observer    xmetrics.Observer
	notifier    Notifier
	onRefreshed func(credential string)
	attempts    uint
	retryDelay  time.Duration
	retryIf     func(err error) bool
}

// Option 配置 Coordinator。
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:     slog.Default(),
		observer:   xmetrics.NoopObserver{},
		attempts:   DefaultRefreshAttempts,
		retryDelay: DefaultRefreshRetryDelay,
		retryIf:    isTemporary,
	}
}

// WithLogger 设置日志记录器，nil 时保留 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithNotifier 设置刷新失败时的广播目标。
// 每轮失败的刷新恰好广播一次，与排队请求数量无关。
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithOnRefreshed 设置刷新成功回调，在任何请求重放之前调用。
// 典型用法是把新凭据写入传输层，使后续新请求直接携带它。
func WithOnRefreshed(fn func(credential string)) Option {
	return func(o *options) {
		o.onRefreshed = fn
	}
}

// WithRefreshAttempts 设置单轮刷新内对刷新操作的最大尝试次数（含首次）。
// 只有被 retryIf 判定为临时性的错误会重试，全部失败后才算一次刷新失败。
func WithRefreshAttempts(n uint) Option {
	return func(o *options) {
		o.attempts = n
	}
}

// WithRefreshRetryDelay 设置重试的初始退避间隔。
func WithRefreshRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithRefreshRetryIf 自定义哪些刷新错误值得在同一轮内重试。
func WithRefreshRetryIf(fn func(err error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.retryIf = fn
		}
	}
}

// isTemporary 识别实现了 Retryable() bool 的传输层临时错误（如 *xapi.TemporaryError）。
func isTemporary(err error) bool {
	var re interface{ Retryable() bool }
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}
