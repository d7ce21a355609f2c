package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 轮转默认值。命令行工具的日志量很小，保留策略比服务端保守。
const (
	DefaultMaxSizeMB  = 20
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 14
)

var (
	// ErrInvalidLevel 无法识别的日志级别
	ErrInvalidLevel = errors.New("xlog: invalid level")
	// ErrInvalidFormat 无法识别的输出格式
	ErrInvalidFormat = errors.New("xlog: invalid format")
)

// sensitiveKeys 会在输出前被替换为掩码。
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"access_token":  {},
	"accessToken":   {},
	"refresh_token": {},
	"authorization": {},
	"credential":    {},
}

const redacted = "***"

// Builder 日志构建器
type Builder struct {
	output   io.Writer
	level    slog.Level
	format   string
	filename string
	redact   bool
	err      error
}

// New 创建构建器，默认 text 格式、info 级别、输出到 stderr，并对凭据字段脱敏。
func New() *Builder {
	return &Builder{
		output: os.Stderr,
		level:  slog.LevelInfo,
		format: "text",
		redact: true,
	}
}

// SetOutput 设置输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w != nil {
		b.output = w
	}
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	b.level = level
	return b
}

// SetFormat 设置输出格式：text 或 json。空值视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.err = fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	return b
}

// SetRotation 把日志写入按大小轮转的文件，覆盖 SetOutput。空文件名不生效。
func (b *Builder) SetRotation(filename string) *Builder {
	b.filename = strings.TrimSpace(filename)
	return b
}

// SetRedact 控制是否对凭据字段脱敏
func (b *Builder) SetRedact(enable bool) *Builder {
	b.redact = enable
	return b
}

// Build 构建 Logger。返回的 cleanup 幂等，用于关闭轮转文件。
func (b *Builder) Build() (*slog.Logger, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	output := b.output
	var rotator *lumberjack.Logger
	if b.filename != "" {
		rotator = &lumberjack.Logger{
			Filename:   b.filename,
			MaxSize:    DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
			MaxAge:     DefaultMaxAgeDays,
			Compress:   true,
		}
		output = rotator
	}

	opts := &slog.HandlerOptions{Level: b.level}
	if b.redact {
		opts.ReplaceAttr = redactAttr
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	var once sync.Once
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
	return slog.New(handler), cleanup, nil
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[a.Key]; ok && a.Value.Kind() == slog.KindString && a.Value.String() != "" {
		return slog.String(a.Key, redacted)
	}
	return a
}
