// Package xlog 为命令行工具构建 log/slog Logger。
//
// 使用 Builder 配置输出目标、级别、格式和文件轮转（lumberjack，按大小轮转并压缩备份）。
// 遇到第一个配置错误后，Build 返回该错误。
//
//	logger, cleanup, err := xlog.New().
//		SetOutput(os.Stderr).
//		SetLevelString("debug").
//		SetFormat("json").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer cleanup()
//
// 默认对 password、access_token、authorization 等字段脱敏，可用 SetRedact(false) 关闭。
package xlog
