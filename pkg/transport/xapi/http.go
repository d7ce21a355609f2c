package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/omeyang/xtube/pkg/observability/xmetrics"
)

const (
	// maxResponseSize 最大响应体大小（10MB）。
	maxResponseSize = 10 * 1024 * 1024

	// HeaderRequestID 请求 ID 头。
	HeaderRequestID = "X-Request-ID"
)

// transport 执行单次 HTTP 往返，不含任何刷新逻辑。
// 拦截器和刷新调用都建立在它之上。
type transport struct {
	client    *http.Client
	host      string
	userAgent string
	observer  xmetrics.Observer
	logger    *slog.Logger
}

// newHTTPClient 按配置创建 http.Client。jar 承载刷新所需的会话 Cookie。
func newHTTPClient(cfg *Config, jar http.CookieJar) (*http.Client, error) {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.TLS != nil {
		tlsConfig, err := cfg.TLS.BuildTLSConfig()
		if err != nil {
			return nil, err
		}
		t.TLSClientConfig = tlsConfig
	}
	return &http.Client{
		Transport: t,
		Timeout:   cfg.Timeout,
		Jar:       jar,
	}, nil
}

// execute 发送请求。credential 为空时不带 Authorization 头。
// 非 2xx 返回 *APIError，网络层失败返回 *TemporaryError。
func (t *transport) execute(ctx context.Context, req *Request, credential string) (err error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := buildURL(t.host, req.Path, req.Query)

	ctx, span := xmetrics.Start(ctx, t.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpHTTPRequest,
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String(MetricsAttrHTTPMethod, method),
			xmetrics.String(MetricsAttrHTTPPath, sanitizeURL(target)),
			xmetrics.Bool(MetricsAttrReplay, req.retried),
		},
	})
	status := 0
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{
			xmetrics.Int(MetricsAttrHTTPStatus, status),
		}})
	}()

	httpReq, err := http.NewRequestWithContext(ctx, method, target, req.bodyReader())
	if err != nil {
		return fmt.Errorf("xapi: create request failed: %w", err)
	}
	t.setHeaders(httpReq, req, credential)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return NewTemporaryError(fmt.Errorf("xapi: request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // Close 错误无法传播
	status = resp.StatusCode

	err = t.handleResponse(resp, req.Response)
	msg := "api request completed"
	if err != nil {
		msg = "api request failed"
	}
	t.logger.Debug(msg,
		slog.String("method", method),
		slog.String("path", sanitizeURL(target)),
		slog.Int("status", status),
		slog.String("request_id", req.id),
	)
	return err
}

// setHeaders 设置请求头。调用方头部可覆盖默认值，但不能覆盖凭据和请求 ID。
func (t *transport) setHeaders(httpReq *http.Request, req *Request, credential string) {
	httpReq.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.hasBody && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.id != "" {
		httpReq.Header.Set(HeaderRequestID, req.id)
	}
	if credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+credential)
	}
}

// handleResponse 读取响应，2xx 解码到 response，其余转为 *APIError。
func (t *transport) handleResponse(resp *http.Response, response any) error {
	lr := &io.LimitedReader{R: resp.Body, N: maxResponseSize + 1}
	body, err := io.ReadAll(lr)
	if err != nil {
		return NewTemporaryError(fmt.Errorf("xapi: read response body failed: %w", err))
	}
	if len(body) > maxResponseSize {
		return fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, maxResponseSize)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return parseAPIError(resp.StatusCode, body)
	}

	if response != nil && len(body) > 0 {
		if err := json.Unmarshal(body, response); err != nil {
			return fmt.Errorf("xapi: unmarshal response failed: %w", err)
		}
	}
	return nil
}

// parseAPIError 解析 {"code": ..., "message": ...} 形式的错误响应。
func parseAPIError(statusCode int, body []byte) error {
	var apiResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	// 非 JSON 响应使用零值
	_ = json.Unmarshal(body, &apiResp) //nolint:errcheck // 解析失败使用零值即可
	return NewAPIError(statusCode, apiResp.Code, apiResp.Message)
}
