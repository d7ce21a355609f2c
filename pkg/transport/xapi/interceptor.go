package xapi

import (
	"context"
	"errors"
	"log/slog"
)

// intercept 对一次执行的结果分类：
//
//   - 凭据永久失效信号（任意状态码）：吞掉错误，调用以空结果成功返回；
//   - 过期失败且尚未重放：标记已重放，交给协调器刷新后重放；
//   - 其他情况：原样返回。
//
// 重放再次经过 intercept，已重放标记保证同一请求最多重放一次。
func (c *Client) intercept(ctx context.Context, req *Request, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	// 永久失效信号优先于过期分类：即使状态码是 401 也不刷新、不重放。
	if signal := c.cfg.invalidTokenSignal(); signal != "" && apiErr.Message == signal {
		c.logger.Debug("credential permanently invalid, request dropped",
			slog.Int("status", apiErr.StatusCode),
			slog.String("path", sanitizeURL(req.Path)),
			slog.String("request_id", req.id),
		)
		return nil
	}

	if apiErr.StatusCode != c.cfg.UnauthorizedStatus {
		return err
	}
	if c.coord == nil || req.NoRefresh || req.retried {
		return err
	}

	req.retried = true
	return c.coord.Authorize(ctx, &replayCall{client: c, req: req})
}

// roundTrip 执行请求并交给拦截器分类。
func (c *Client) roundTrip(ctx context.Context, req *Request) error {
	credential := req.credential
	if !req.hasCredential {
		credential = c.Credential()
	}
	err := c.transport.execute(ctx, req, credential)
	return c.intercept(ctx, req, err)
}

// replayCall 把 Request 适配为 xrefresh.Replayable。
type replayCall struct {
	client *Client
	req    *Request
}

func (r *replayCall) WithCredential(credential string) {
	r.req.withCredential(credential)
}

func (r *replayCall) Replay(ctx context.Context) error {
	return r.client.roundTrip(ctx, r.req)
}
