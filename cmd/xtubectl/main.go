// xtubectl 是 xtube API 的命令行客户端，用于登录、发起带凭据的请求和检查会话状态。
//
// 用法:
//
//	xtubectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config        配置文件 (YAML/JSON)
//	--host              API 地址，覆盖配置文件
//	--timeout           请求超时 (默认: 15s)
//	--insecure          允许 http:// 地址
//	--log-level         日志级别 (debug/info/warn/error, 默认: warn)
//	--log-format        日志格式 (text/json, 默认: text)
//	--log-file          日志文件，按大小轮转 (环境变量 XTUBE_LOG_FILE)
//	--otel              输出 OpenTelemetry span 和指标 (环境变量 XTUBE_OTEL)
//	--redis             Redis 地址，用于持久化登录用户
//	--access-token      初始访问凭据 (环境变量 XTUBE_ACCESS_TOKEN)
//
// 命令:
//
//	login               登录
//	logout              登出
//	whoami              查看当前用户
//	get <path>          发送 GET 请求
//	post <path> [json]  发送 POST 请求
//	refresh             强制刷新访问凭据
//	token               查看访问凭据中的 JWT 声明（不校验签名）
//
// 退出码:
//
//	0: 成功
//	1: 失败
//	2: 参数错误
//	3: 会话已过期，需要重新登录
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtube/pkg/auth/xrefresh"
)

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// 退出码。
const (
	exitOK             = 0
	exitFailure        = 1
	exitUsage          = 2
	exitSessionExpired = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 执行命令并把错误映射为退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)

	err := app.Run(ctx, args)
	if err == nil {
		return exitOK
	}

	var usageErr *usageError
	switch {
	case errors.As(err, &usageErr):
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return exitUsage
	case xrefresh.IsRefreshFailure(err):
		fmt.Fprintf(stderr, "会话已过期，请重新登录: %v\n", err)
		return exitSessionExpired
	case isCLIUsageError(err):
		fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return exitFailure
	}
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xtubectl",
		Usage:     "xtube API 命令行客户端",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     globalFlags(),
		Commands:  createCommands(),
		// 退出码统一由 run 映射
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

// usageError 表示参数错误，映射为退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// isCLIUsageError 识别 urfave/cli 自身产生的参数错误（未知 flag、非法取值、缺少必填 flag）。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{
		"flag provided but not defined",
		"invalid value",
		"Required flag",
		"Required flags",
		"No help topic for",
		"Incorrect Usage",
	} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
