package xapi

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// 配置错误
// =============================================================================

var (
	// ErrNilConfig 表示传入的配置为 nil。
	ErrNilConfig = errors.New("xapi: nil config")

	// ErrMissingHost 表示 API 地址未配置。
	ErrMissingHost = errors.New("xapi: missing host")

	// ErrInvalidHost 表示 Host 缺少协议或主机名，例如应为 "https://api.example.com"。
	ErrInvalidHost = errors.New("xapi: invalid host: must include scheme and host")

	// ErrInsecureHost 表示 Host 使用了 http://。
	// 请求会携带 Bearer 凭据和会话 Cookie，开发环境请显式设置 AllowInsecure。
	ErrInsecureHost = errors.New("xapi: host must use https:// (set AllowInsecure=true for development)")

	// ErrInvalidTimeout 表示超时配置为负。
	ErrInvalidTimeout = errors.New("xapi: invalid timeout")

	// ErrInvalidRefreshPath 表示刷新路径不是以 "/" 开头的相对路径。
	ErrInvalidRefreshPath = errors.New("xapi: refresh path must start with /")

	// ErrInvalidUnauthorizedStatus 表示过期状态码不在 4xx 范围内。
	ErrInvalidUnauthorizedStatus = errors.New("xapi: unauthorized status must be a 4xx code")

	// ErrUnsupportedFormat 表示配置文件扩展名不受支持。
	ErrUnsupportedFormat = errors.New("xapi: unsupported config format")

	// ErrLoadConfig 表示读取或解析配置文件失败。
	ErrLoadConfig = errors.New("xapi: load config failed")
)

// =============================================================================
// 请求错误
// =============================================================================

var (
	// ErrNilRequest 表示传入的请求为 nil。
	ErrNilRequest = errors.New("xapi: nil request")

	// ErrNilClient 表示传入的客户端为 nil。
	ErrNilClient = errors.New("xapi: nil client")

	// ErrRefreshDisabled 表示客户端未启用自动刷新。
	ErrRefreshDisabled = errors.New("xapi: auto refresh disabled")

	// ErrClientClosed 表示客户端已关闭。
	ErrClientClosed = errors.New("xapi: client closed")

	// ErrResponseTooLarge 表示响应体超过上限。
	ErrResponseTooLarge = errors.New("xapi: response body exceeds maximum size limit")

	// ErrMissingCredential 表示刷新响应中没有访问凭据。
	ErrMissingCredential = errors.New("xapi: refresh response carries no access token")

	// ErrUnauthorized 对应 401。
	ErrUnauthorized = errors.New("xapi: unauthorized")

	// ErrForbidden 对应 403。
	ErrForbidden = errors.New("xapi: forbidden")

	// ErrNotFound 对应 404。
	ErrNotFound = errors.New("xapi: not found")

	// ErrServerError 对应 5xx。
	ErrServerError = errors.New("xapi: server error")
)

// =============================================================================
// 可重试错误
// =============================================================================

// TemporaryError 是传输层临时错误（连接失败、超时等）。
// 它实现 Retryable() bool，xrefresh 的刷新重试据此判断。
type TemporaryError struct {
	Err error
}

// NewTemporaryError 创建临时性错误。
func NewTemporaryError(err error) *TemporaryError {
	return &TemporaryError{Err: err}
}

func (e *TemporaryError) Error() string {
	if e.Err == nil {
		return "xapi: temporary error"
	}
	return e.Err.Error()
}

func (e *TemporaryError) Unwrap() error {
	return e.Err
}

// Retryable 总是返回 true。
func (e *TemporaryError) Retryable() bool {
	return true
}

// IsRetryable 报告 err 是否值得由调用方重试。
// 本包自身只在凭据过期时重放请求，不做通用重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re interface{ Retryable() bool }
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return false
}

// =============================================================================
// API 错误
// =============================================================================

// APIError 是服务端返回的非 2xx 响应。
// Message 取自响应体 {"message": "..."}，也用于识别"凭据永久失效"信号。
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

// NewAPIError 创建 API 错误。
func NewAPIError(statusCode, code int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("xapi: api error: status=%d, code=%d, message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("xapi: api error: status=%d, code=%d", e.StatusCode, e.Code)
}

// Retryable 5xx 视为可重试，4xx 不可重试。
func (e *APIError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// Is 把状态码映射到对应的哨兵错误。
func (e *APIError) Is(target error) bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return target == ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return target == ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return target == ErrNotFound
	case e.StatusCode >= http.StatusInternalServerError:
		return target == ErrServerError
	}
	return false
}
