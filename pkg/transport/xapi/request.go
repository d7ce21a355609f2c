package xapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Request 描述一次 API 调用。
//
// 同一个 Request 在一次 Do 内可能被执行两次（过期后用新凭据重放），
// 请求体因此在首次执行前被编码并缓存。
type Request struct {
	// Method HTTP 方法。
	Method string

	// Path 相对于 Config.Host 的路径，也可以是完整 URL。
	Path string

	// Query 查询参数。
	Query url.Values

	// Headers 额外请求头。
	Headers map[string]string

	// Body 请求体。支持 nil、string、[]byte、io.Reader，其他类型按 JSON 编码。
	Body any

	// Response 2xx 响应体的 JSON 解码目标，nil 时丢弃响应体。
	Response any

	// NoRefresh 为 true 时过期失败直接返回，不触发刷新。
	// 登出等在会话结束路径上发出的请求应设置它。
	NoRefresh bool

	retried       bool
	credential    string
	hasCredential bool
	id            string
	encoded       []byte
	hasBody       bool
}

// ID 返回本次调用的请求 ID（X-Request-ID），Do 之前为空。
func (r *Request) ID() string {
	return r.id
}

// Retried 报告本次调用是否已因凭据过期重放过。
func (r *Request) Retried() bool {
	return r.retried
}

// prepare 在每次 Do 开始时重置内部状态并缓存请求体。
// 请求 ID 在一次逻辑调用内保持不变，重放沿用同一个 ID。
func (r *Request) prepare() error {
	r.retried = false
	r.credential = ""
	r.hasCredential = false
	r.id = uuid.NewString()

	data, hasBody, err := encodeBody(r.Body)
	if err != nil {
		return err
	}
	r.encoded = data
	r.hasBody = hasBody
	return nil
}

// withCredential 固定本请求使用的凭据。
func (r *Request) withCredential(credential string) {
	r.credential = credential
	r.hasCredential = true
}

func (r *Request) bodyReader() io.Reader {
	if !r.hasBody {
		return nil
	}
	return bytes.NewReader(r.encoded)
}

// encodeBody 把请求体编码为字节。io.Reader 只读取一次。
func encodeBody(body any) ([]byte, bool, error) {
	if body == nil {
		return nil, false, nil
	}
	switch v := body.(type) {
	case string:
		return []byte(v), true, nil
	case []byte:
		return v, true, nil
	case json.RawMessage:
		return v, true, nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, false, fmt.Errorf("xapi: read request body failed: %w", err)
		}
		return data, true, nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, false, fmt.Errorf("xapi: marshal request body failed: %w", err)
		}
		return data, true, nil
	}
}

// buildURL 拼接 Host 与路径。Host 不含尾部斜杠，path 以斜杠开头。
func buildURL(host, path string, query url.Values) string {
	u := path
	if !isAbsoluteURL(path) {
		if path != "" && !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u = host + path
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// isAbsoluteURL 判断 path 是否为绝对 URL（大小写不敏感）。
func isAbsoluteURL(path string) bool {
	if len(path) >= 8 && strings.EqualFold(path[:8], "https://") {
		return true
	}
	return len(path) >= 7 && strings.EqualFold(path[:7], "http://")
}

// sanitizeURL 去掉查询参数，避免指标高基数。
func sanitizeURL(rawURL string) string {
	if p, _, found := strings.Cut(rawURL, "?"); found {
		return p
	}
	return rawURL
}
