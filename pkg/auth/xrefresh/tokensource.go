package xrefresh

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenSourceRefresher 把 oauth2.TokenSource 适配为 Refresher。
// 适用于凭据由标准 OAuth2 端点签发的部署；ctx 不会传给 TokenSource。
func TokenSourceRefresher(ts oauth2.TokenSource) Refresher {
	return RefresherFunc(func(context.Context) (string, error) {
		if ts == nil {
			return "", ErrNilRefresher
		}
		tok, err := ts.Token()
		if err != nil {
			return "", fmt.Errorf("xrefresh: token source: %w", err)
		}
		if tok == nil {
			return "", ErrEmptyCredential
		}
		return tok.AccessToken, nil
	})
}
