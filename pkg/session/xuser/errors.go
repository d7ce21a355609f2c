package xuser

import "errors"

var (
	// ErrNilAPI 表示未提供 API 客户端。
	ErrNilAPI = errors.New("xuser: nil api client")

	// ErrNilRedisClient 表示未提供 Redis 客户端。
	ErrNilRedisClient = errors.New("xuser: nil redis client")

	// ErrCorruptRecord 表示持久化记录无法解析。
	ErrCorruptRecord = errors.New("xuser: corrupt persisted record")

	// ErrMissingUser 表示登录响应中没有用户信息。
	ErrMissingUser = errors.New("xuser: login response carries no user")
)

// SessionExpiredMessage 是刷新失败后记录的错误信息。
const SessionExpiredMessage = "Session expired. Please login again."
