package xapi

import (
	"context"
	"net/http"

	"github.com/omeyang/xtube/pkg/auth/xrefresh"
)

// refreshResponse 兼容两种响应形态：
// {"accessToken": "..."} 和 {"data": {"accessToken": "..."}}。
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	Data        *struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

func (r *refreshResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	if r.Data != nil {
		return r.Data.AccessToken
	}
	return ""
}

// NewHTTPRefresher 返回通过 POST Config.RefreshPath 刷新凭据的 Refresher。
//
// 刷新请求直接走传输层，不经过拦截器：刷新端点自身返回过期状态时
// 不会再次进入协调器。服务端依赖的会话 Cookie 由客户端的 Cookie Jar 携带。
func NewHTTPRefresher(c *Client) xrefresh.Refresher {
	return xrefresh.RefresherFunc(func(ctx context.Context) (string, error) {
		if c == nil {
			return "", ErrNilClient
		}
		var resp refreshResponse
		req := &Request{
			Method:    http.MethodPost,
			Path:      c.cfg.RefreshPath,
			Body:      struct{}{},
			Response:  &resp,
			NoRefresh: true,
		}
		if err := req.prepare(); err != nil {
			return "", err
		}
		if err := c.transport.execute(ctx, req, ""); err != nil {
			return "", err
		}
		token := resp.token()
		if token == "" {
			return "", ErrMissingCredential
		}
		return token, nil
	})
}
