package xrefresh

import (
	"errors"
	"fmt"
)

var (
	// ErrNilRefresher 表示未提供刷新操作。
	ErrNilRefresher = errors.New("xrefresh: nil refresher")

	// ErrNilReplayable 表示 Authorize 收到 nil 请求。
	ErrNilReplayable = errors.New("xrefresh: nil replayable request")

	// ErrRefreshFailed 表示凭据刷新失败，当前会话不可恢复。
	// 所有 *RefreshError 都满足 errors.Is(err, ErrRefreshFailed)。
	ErrRefreshFailed = errors.New("xrefresh: credential refresh failed")

	// ErrEmptyCredential 表示刷新成功返回但凭据为空，按刷新失败处理。
	ErrEmptyCredential = errors.New("xrefresh: refresh returned empty credential")

	// ErrRefresherPanicked 表示刷新操作发生 panic，按刷新失败处理。
	ErrRefresherPanicked = errors.New("xrefresh: refresher panicked")

	// ErrInvalidAttempts 表示刷新尝试次数配置无效。
	ErrInvalidAttempts = errors.New("xrefresh: refresh attempts must be >= 1")
)

// RefreshError 是交付给驱动者和所有排队请求的终止错误。
// 同一轮失败的所有调用方拿到的是同一个 *RefreshError。
type RefreshError struct {
	// Err 是刷新操作返回的原始错误。
	Err error
	// Waiters 是本轮失败时被拒绝的排队请求数（不含驱动者）。
	Waiters int
}

func (e *RefreshError) Error() string {
	if e.Err == nil {
		return ErrRefreshFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrRefreshFailed.Error(), e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrRefreshFailed) 成立。
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

// IsRefreshFailure 报告 err 是否为刷新失败。
func IsRefreshFailure(err error) bool {
	return errors.Is(err, ErrRefreshFailed)
}
