package xapi

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// =============================================================================
// 默认值
// =============================================================================

const (
	// DefaultTimeout 单次 HTTP 请求超时。刷新调用没有独立超时，也受此约束。
	DefaultTimeout = 15 * time.Second

	// DefaultUnauthorizedStatus 表示访问凭据过期的状态码。
	DefaultUnauthorizedStatus = http.StatusUnauthorized

	// DefaultInvalidTokenMessage 是服务端"凭据永久失效"信号的 message 字段值。
	DefaultInvalidTokenMessage = "TokenExpired"

	// DefaultUserAgent 默认 User-Agent。
	DefaultUserAgent = "xtube-client"
)

// =============================================================================
// API 路由
// =============================================================================

//nolint:gosec // G101: 这些是 API 路径常量，不是凭据
const (
	// PathRefreshToken 刷新访问凭据。
	PathRefreshToken = "/users/refresh-token"

	// PathLogin 登录。
	PathLogin = "/users/login"

	// PathLogout 登出。
	PathLogout = "/users/logout"

	// PathCurrentUser 当前用户。
	PathCurrentUser = "/users/current-user"
)

// =============================================================================
// Config
// =============================================================================

// Config 定义 API 客户端配置。
type Config struct {
	// Host API 地址（必填），例如 https://api.example.com/api/v1。
	Host string `koanf:"host"`

	// AllowInsecure 允许 http://，仅用于开发和测试。
	AllowInsecure bool `koanf:"allow_insecure"`

	// Timeout 请求超时，默认 15 秒。
	Timeout time.Duration `koanf:"timeout"`

	// RefreshPath 刷新凭据的路径，默认 /users/refresh-token。
	RefreshPath string `koanf:"refresh_path"`

	// UnauthorizedStatus 被识别为凭据过期的状态码，默认 401。
	UnauthorizedStatus int `koanf:"unauthorized_status"`

	// InvalidTokenMessage 响应体 message 等于该值时视为凭据永久失效，
	// 请求以空结果成功返回，不触发刷新。默认 "TokenExpired"。
	// 设为 "-" 关闭该行为。
	InvalidTokenMessage string `koanf:"invalid_token_message"`

	// UserAgent 请求 User-Agent。
	UserAgent string `koanf:"user_agent"`

	// TLS 配置，nil 时启用证书验证的默认配置。
	TLS *TLSConfig `koanf:"tls"`
}

// TLSConfig TLS 配置。
type TLSConfig struct {
	// InsecureSkipVerify 跳过证书验证，仅用于开发和测试。
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`

	// RootCAFile CA 证书文件路径。
	RootCAFile string `koanf:"root_ca_file"`
}

// Validate 校验配置。
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.RefreshPath != "" && !strings.HasPrefix(c.RefreshPath, "/") {
		return ErrInvalidRefreshPath
	}
	if c.UnauthorizedStatus != 0 && (c.UnauthorizedStatus < 400 || c.UnauthorizedStatus > 499) {
		return ErrInvalidUnauthorizedStatus
	}
	return nil
}

func (c *Config) validateHost() error {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		return ErrMissingHost
	}
	u, err := url.Parse(host)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidHost
	}
	if !c.AllowInsecure && u.Scheme != "https" {
		return ErrInsecureHost
	}
	return nil
}

// ApplyDefaults 填充零值字段。
func (c *Config) ApplyDefaults() {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshPath == "" {
		c.RefreshPath = PathRefreshToken
	}
	if c.UnauthorizedStatus == 0 {
		c.UnauthorizedStatus = DefaultUnauthorizedStatus
	}
	if c.InvalidTokenMessage == "" {
		c.InvalidTokenMessage = DefaultInvalidTokenMessage
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Clone 深拷贝配置。
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.TLS != nil {
		tlsCopy := *c.TLS
		clone.TLS = &tlsCopy
	}
	return &clone
}

// invalidTokenSignal 返回生效的永久失效信号，关闭时返回空串。
func (c *Config) invalidTokenSignal() string {
	if c.InvalidTokenMessage == "-" {
		return ""
	}
	return c.InvalidTokenMessage
}

// BuildTLSConfig 构建 *tls.Config。
func (c *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	//nolint:gosec // G402: InsecureSkipVerify 由调用方显式配置
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if c.RootCAFile != "" {
		pem, err := os.ReadFile(c.RootCAFile)
		if err != nil {
			return nil, fmt.Errorf("xapi: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("xapi: parse CA certificate %s", c.RootCAFile)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// =============================================================================
// 从文件加载
// =============================================================================

// LoadConfig 从 YAML 或 JSON 文件加载配置，格式按扩展名判断。
// 配置可以位于根节点，也可以位于 "api" 节点下。
// 返回的配置未应用默认值，也未校验；New 会完成这两步。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig 解析配置内容。ext 为 ".yaml"、".yml" 或 ".json"。
func ParseConfig(data []byte, ext string) (*Config, error) {
	var parser koanf.Parser
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	k := koanf.New(".")
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	root := ""
	if k.Exists("api") {
		root = "api"
	}
	var cfg Config
	if err := k.UnmarshalWithConf(root, &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	return &cfg, nil
}
