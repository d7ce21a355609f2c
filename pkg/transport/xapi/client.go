package xapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"

	"github.com/omeyang/xtube/pkg/auth/xrefresh"
)

// Client 是带过期自动刷新的 API 客户端。
//
// 每个 Client 持有一个 xrefresh.Coordinator；同一时刻无论多少请求遇到凭据过期，
// 只会发出一次刷新。当前凭据只保存在内存中。
type Client struct {
	cfg        *Config
	httpClient *http.Client
	transport  *transport
	coord      *xrefresh.Coordinator
	logger     *slog.Logger

	credential atomic.Pointer[string]
	closed     atomic.Bool
}

// New 创建 API 客户端。cfg 会被复制，调用方之后的修改不影响客户端。
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := applyOptions(opts)

	// cookiejar.New 在 nil 选项下不会失败
	jar, _ := cookiejar.New(nil) //nolint:errcheck // 见上
	httpClient, err := buildHTTPClient(cfg, options.HTTPClient, jar)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     options.Logger,
		transport: &transport{
			client:    httpClient,
			host:      cfg.Host,
			userAgent: cfg.UserAgent,
			observer:  options.Observer,
			logger:    options.Logger,
		},
	}
	c.SetCredential(options.Credential)

	if !options.DisableAutoRefresh {
		refresher := options.Refresher
		if refresher == nil {
			refresher = NewHTTPRefresher(c)
		}
		refreshOpts := []xrefresh.Option{
			xrefresh.WithLogger(options.Logger),
			xrefresh.WithObserver(options.Observer),
			xrefresh.WithOnRefreshed(c.SetCredential),
		}
		if options.Notifier != nil {
			refreshOpts = append(refreshOpts, xrefresh.WithNotifier(options.Notifier))
		}
		refreshOpts = append(refreshOpts, options.RefreshOptions...)

		c.coord, err = xrefresh.New(refresher, refreshOpts...)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}

func buildHTTPClient(cfg *Config, custom *http.Client, jar http.CookieJar) (*http.Client, error) {
	if custom == nil {
		return newHTTPClient(cfg, jar)
	}
	hc := *custom
	if hc.Jar == nil {
		hc.Jar = jar
	}
	return &hc, nil
}

// Do 执行请求。
//
// 凭据过期时请求会在刷新后用新凭据重放一次，重放结果即本次调用结果；
// 刷新失败时返回 *xrefresh.RefreshError。
// 服务端返回凭据永久失效信号时返回 nil，且不写入 req.Response。
func (c *Client) Do(ctx context.Context, req *Request) error {
	if req == nil {
		return ErrNilRequest
	}
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := req.prepare(); err != nil {
		return err
	}
	return c.roundTrip(ctx, req)
}

// Get 发送 GET 请求。
func (c *Client) Get(ctx context.Context, path string, response any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Response: response})
}

// Post 发送 POST 请求。
func (c *Client) Post(ctx context.Context, path string, body, response any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body, Response: response})
}

// Put 发送 PUT 请求。
func (c *Client) Put(ctx context.Context, path string, body, response any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body, Response: response})
}

// Patch 发送 PATCH 请求。
func (c *Client) Patch(ctx context.Context, path string, body, response any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, Body: body, Response: response})
}

// Delete 发送 DELETE 请求。
func (c *Client) Delete(ctx context.Context, path string, response any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Response: response})
}

// Refresh 经过单飞流程强制刷新凭据。
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if c.closed.Load() {
		return "", ErrClientClosed
	}
	if c.coord == nil {
		return "", ErrRefreshDisabled
	}
	return c.coord.Refresh(ctx)
}

// SetCredential 设置当前访问凭据，空串表示清除。
func (c *Client) SetCredential(credential string) {
	c.credential.Store(&credential)
}

// Credential 返回当前访问凭据。
func (c *Client) Credential() string {
	if p := c.credential.Load(); p != nil {
		return *p
	}
	return ""
}

// Coordinator 返回刷新协调器，关闭自动刷新时为 nil。
func (c *Client) Coordinator() *xrefresh.Coordinator {
	return c.coord
}

// Config 返回配置副本。
func (c *Client) Config() *Config {
	return c.cfg.Clone()
}

// HTTPClient 返回底层 HTTP 客户端。
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Close 关闭客户端，之后的调用返回 ErrClientClosed。可重复调用。
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}
