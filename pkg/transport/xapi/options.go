package xapi

import (
	"log/slog"
	"net/http"

	"github.com/omeyang/xtube/pkg/auth/xrefresh"
	"github.com/omeyang/xtube/pkg/observability/xmetrics"
)

// Options 定义客户端的可选配置。
type Options struct {
	// HTTPClient 自定义 HTTP 客户端。
	// 注入后 Config.TLS 和 Config.Timeout 不再生效；Jar 为 nil 时会补上内存 Cookie Jar。
	HTTPClient *http.Client

	// Logger 日志记录器，默认 slog.Default()。
	Logger *slog.Logger

	// Observer 可观测性接口。
	Observer xmetrics.Observer

	// Refresher 自定义刷新操作，默认 POST Config.RefreshPath。
	Refresher xrefresh.Refresher

	// Notifier 刷新失败时的会话过期广播目标，通常是 *xexpiry.Notifier。
	Notifier xrefresh.Notifier

	// RefreshOptions 透传给 xrefresh.New 的额外选项。
	RefreshOptions []xrefresh.Option

	// DisableAutoRefresh 关闭过期自动刷新，过期失败原样返回。
	DisableAutoRefresh bool

	// Credential 初始访问凭据。
	Credential string
}

// Option 定义配置客户端的函数类型。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Logger:   slog.Default(),
		Observer: xmetrics.NoopObserver{},
	}
}

func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithHTTPClient 设置自定义 HTTP 客户端。
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithObserver 设置可观测性接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithRefresher 替换默认的 HTTP 刷新操作，例如 xrefresh.TokenSourceRefresher。
func WithRefresher(r xrefresh.Refresher) Option {
	return func(o *Options) {
		o.Refresher = r
	}
}

// WithNotifier 设置会话过期广播目标。
func WithNotifier(n xrefresh.Notifier) Option {
	return func(o *Options) {
		o.Notifier = n
	}
}

// WithRefreshAttempts 设置单轮刷新内对临时性错误的最大尝试次数。
func WithRefreshAttempts(n uint) Option {
	return func(o *Options) {
		o.RefreshOptions = append(o.RefreshOptions, xrefresh.WithRefreshAttempts(n))
	}
}

// WithRefreshOptions 透传 xrefresh 选项。
func WithRefreshOptions(opts ...xrefresh.Option) Option {
	return func(o *Options) {
		o.RefreshOptions = append(o.RefreshOptions, opts...)
	}
}

// WithoutAutoRefresh 关闭过期自动刷新。
func WithoutAutoRefresh() Option {
	return func(o *Options) {
		o.DisableAutoRefresh = true
	}
}

// WithCredential 设置初始访问凭据。
func WithCredential(credential string) Option {
	return func(o *Options) {
		o.Credential = credential
	}
}
