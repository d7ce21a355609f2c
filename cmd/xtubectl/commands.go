package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtube/pkg/observability/xlog"
	"github.com/omeyang/xtube/pkg/session/xexpiry"
	"github.com/omeyang/xtube/pkg/session/xuser"
	"github.com/omeyang/xtube/pkg/transport/xapi"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "配置文件路径 (YAML/JSON)",
			Sources: cli.EnvVars("XTUBE_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "API 地址，例如 https://api.example.com/api/v1",
			Sources: cli.EnvVars("XTUBE_HOST"),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "请求超时",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "允许 http:// 地址（仅用于开发）",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "日志级别 (debug/info/warn/error)",
			Value: "warn",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "日志格式 (text/json)",
			Value: "text",
		},
		&cli.StringFlag{
			Name:    "log-file",
			Usage:   "日志文件，按大小轮转；为空时写到 stderr",
			Sources: cli.EnvVars("XTUBE_LOG_FILE"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "以 JSON 输出 OpenTelemetry span 和指标到 stderr",
			Sources: cli.EnvVars("XTUBE_OTEL"),
		},
		&cli.StringFlag{
			Name:    "redis",
			Usage:   "Redis 地址，用于持久化登录用户",
			Sources: cli.EnvVars("XTUBE_REDIS"),
		},
		&cli.StringFlag{
			Name:    "access-token",
			Usage:   "初始访问凭据",
			Sources: cli.EnvVars("XTUBE_ACCESS_TOKEN"),
		},
	}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "登录",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "邮箱", Required: true},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "密码", Sources: cli.EnvVars("XTUBE_PASSWORD")},
				&cli.BoolFlag{Name: "show-token", Usage: "输出访问凭据"},
			},
			Action: withSession(cmdLogin),
		},
		{
			Name:   "logout",
			Usage:  "登出",
			Action: withSession(cmdLogout),
		},
		{
			Name:   "whoami",
			Usage:  "查看当前用户",
			Action: withSession(cmdWhoami),
		},
		{
			Name:      "get",
			Usage:     "发送 GET 请求",
			ArgsUsage: "<path>",
			Action:    withSession(cmdGet),
		},
		{
			Name:      "post",
			Usage:     "发送 POST 请求",
			ArgsUsage: "<path> [json]",
			Action:    withSession(cmdPost),
		},
		{
			Name:   "refresh",
			Usage:  "强制刷新访问凭据",
			Action: withSession(cmdRefresh),
		},
		{
			Name:   "token",
			Usage:  "查看访问凭据中的 JWT 声明（不校验签名）",
			Action: withSession(cmdToken),
		},
	}
}

// session 是一次命令执行所需的全部组件。
type session struct {
	client *xapi.Client
	store  *xuser.Store
	out    io.Writer
	close  func()
}

type sessionAction func(ctx context.Context, cmd *cli.Command, s *session) error

// withSession 在执行命令前组装客户端和会话。
func withSession(action sessionAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		s, err := newSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return action(ctx, cmd, s)
	}
}

func newSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	root := cmd.Root()

	logger, closeLog, err := newLogger(cmd, root.ErrWriter)
	if err != nil {
		return nil, err
	}

	closers := []func(){func() { _ = closeLog() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		closeAll()
		return nil, err
	}

	expiry := xexpiry.New(xexpiry.WithLogger(logger))
	clientOpts := []xapi.Option{
		xapi.WithLogger(logger),
		xapi.WithNotifier(expiry),
		xapi.WithCredential(cmd.String("access-token")),
	}
	if cmd.Bool("otel") {
		tel, terr := newTelemetry(root.ErrWriter)
		if terr != nil {
			closeAll()
			return nil, terr
		}
		closers = append(closers, func() {
			if err := tel.close(ctx); err != nil {
				logger.Warn("flush telemetry failed", slog.String("error", err.Error()))
			}
		})
		clientOpts = append(clientOpts, xapi.WithObserver(tel.observer))
	}

	client, err := xapi.New(cfg, clientOpts...)
	if err != nil {
		closeAll()
		return nil, newUsageError("%v", err)
	}
	closers = append(closers, func() { _ = client.Close() })

	storeOpts := []xuser.Option{xuser.WithLogger(logger), xuser.WithExpiry(expiry)}
	if addr := cmd.String("redis"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		closers = append(closers, func() { _ = rdb.Close() })
		persister, perr := xuser.NewRedisPersister(rdb)
		if perr != nil {
			closeAll()
			return nil, perr
		}
		storeOpts = append(storeOpts, xuser.WithPersister(persister))
	}

	store, err := xuser.New(client, storeOpts...)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, store.Close)

	if err := store.Restore(ctx); err != nil {
		logger.Warn("restore session failed", slog.String("error", err.Error()))
	}

	return &session{
		client: client,
		store:  store,
		out:    root.Writer,
		close:  closeAll,
	}, nil
}

// loadConfig 读取配置文件，再用命令行参数覆盖。
func loadConfig(cmd *cli.Command) (*xapi.Config, error) {
	cfg := &xapi.Config{}
	if path := cmd.String("config"); path != "" {
		loaded, err := xapi.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		cfg.Timeout = timeout
	}
	if cmd.Bool("insecure") {
		cfg.AllowInsecure = true
	}
	if cfg.Host == "" {
		return nil, newUsageError("缺少 API 地址，请使用 --host 或配置文件")
	}
	return cfg, nil
}

func newLogger(cmd *cli.Command, w io.Writer) (*slog.Logger, func() error, error) {
	logger, cleanup, err := xlog.New().
		SetOutput(w).
		SetLevelString(cmd.String("log-level")).
		SetFormat(cmd.String("log-format")).
		SetRotation(cmd.String("log-file")).
		Build()
	if err != nil {
		return nil, nil, newUsageError("%v", err)
	}
	return logger, cleanup, nil
}

// =============================================================================
// 命令实现
// =============================================================================

func cmdLogin(ctx context.Context, cmd *cli.Command, s *session) error {
	password := cmd.String("password")
	if password == "" {
		return newUsageError("缺少密码，请使用 --password 或 XTUBE_PASSWORD")
	}
	err := s.store.Login(ctx, xuser.Credentials{Email: cmd.String("email"), Password: password})
	if err != nil {
		return fmt.Errorf("登录失败: %s: %w", s.store.LastError(), err)
	}
	u := s.store.User()
	fmt.Fprintf(s.out, "已登录: %s <%s>\n", u.Username, u.Email)
	if cmd.Bool("show-token") {
		fmt.Fprintln(s.out, s.client.Credential())
	}
	return nil
}

func cmdLogout(ctx context.Context, _ *cli.Command, s *session) error {
	if err := s.store.Logout(ctx); err != nil {
		fmt.Fprintf(s.out, "已清除本地会话（服务端登出失败: %v）\n", err)
		return nil
	}
	fmt.Fprintln(s.out, "已登出")
	return nil
}

var errNotLoggedIn = errors.New("未登录")

// cmdWhoami 优先使用持久化的登录用户；没有时用 --access-token 直接查询。
func cmdWhoami(ctx context.Context, _ *cli.Command, s *session) error {
	if !s.store.IsAuthenticated() {
		if s.client.Credential() == "" {
			return errNotLoggedIn
		}
		var resp struct {
			Data json.RawMessage `json:"data"`
		}
		if err := s.client.Get(ctx, xapi.PathCurrentUser, &resp); err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errNotLoggedIn
		}
		return printRaw(s.out, resp.Data)
	}

	if err := s.store.FetchCurrentUser(ctx); err != nil {
		return err
	}
	u := s.store.User()
	if u == nil {
		return errNotLoggedIn
	}
	return printJSON(s.out, u)
}

func cmdGet(ctx context.Context, cmd *cli.Command, s *session) error {
	if cmd.NArg() < 1 {
		return newUsageError("get 需要 <path> 参数")
	}
	var out json.RawMessage
	if err := s.client.Get(ctx, cmd.Args().First(), &out); err != nil {
		return err
	}
	return printRaw(s.out, out)
}

func cmdPost(ctx context.Context, cmd *cli.Command, s *session) error {
	if cmd.NArg() < 1 {
		return newUsageError("post 需要 <path> 参数")
	}
	var body any
	if raw := cmd.Args().Get(1); raw != "" {
		if !json.Valid([]byte(raw)) {
			return newUsageError("请求体不是合法的 JSON")
		}
		body = json.RawMessage(raw)
	}
	var out json.RawMessage
	if err := s.client.Post(ctx, cmd.Args().First(), body, &out); err != nil {
		return err
	}
	return printRaw(s.out, out)
}

func cmdRefresh(ctx context.Context, _ *cli.Command, s *session) error {
	credential, err := s.client.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, credential)
	return nil
}

func cmdToken(_ context.Context, _ *cli.Command, s *session) error {
	credential := s.client.Credential()
	if credential == "" {
		return newUsageError("没有访问凭据，请使用 --access-token 或 XTUBE_ACCESS_TOKEN")
	}
	claims, err := inspectToken(credential)
	if err != nil {
		return err
	}
	return printJSON(s.out, claims)
}

// tokenInfo 是访问凭据的可读摘要。
type tokenInfo struct {
	Claims    jwt.MapClaims `json:"claims"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
	Expired   bool          `json:"expired"`
}

// inspectToken 解析 JWT 但不校验签名，只用于查看声明。
func inspectToken(credential string) (*tokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("解析访问凭据失败: %w", err)
	}
	info := &tokenInfo{Claims: claims}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil {
		t := exp.UTC()
		info.ExpiresAt = &t
		info.Expired = time.Now().After(exp.Time)
	}
	return info, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printRaw(w io.Writer, raw json.RawMessage) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	return printJSON(w, v)
}
