package xrefresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	retry "github.com/avast/retry-go/v5"

	"github.com/omeyang/xtube/pkg/observability/xmetrics"
)

// State 是协调器的刷新状态。
type State int32

const (
	// StateIdle 没有进行中的刷新。
	StateIdle State = iota
	// StateRefreshing 恰好有一个刷新在进行，后到的过期失败排队等待。
	StateRefreshing
)

// String 返回状态名称。
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRefreshing:
		return "REFRESHING"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Refresher 执行一次凭据刷新，返回新的访问凭据。
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc 将函数适配为 Refresher。
type RefresherFunc func(ctx context.Context) (string, error)

// Refresh 调用 f(ctx)。
func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// Replayable 是一个因凭据过期失败、可以用新凭据重新执行的请求。
type Replayable interface {
	// WithCredential 把新凭据写入请求。
	WithCredential(credential string)
	// Replay 重新执行请求，返回值原样交还给原调用方。
	Replay(ctx context.Context) error
}

// Stats 是协调器的累计统计。
type Stats struct {
	// Refreshes 实际发出的刷新轮数。
	Refreshes uint64
	// Failures 失败的刷新轮数，也等于会话过期广播次数。
	Failures uint64
	// Queued 累计排队等待过的请求数。
	Queued uint64
}

// Coordinator 是单飞刷新状态机。
//
// 任意多个请求并发遇到凭据过期时，只有第一个（驱动者）发起刷新，
// 其余请求按到达顺序排队，不再访问网络，直到这一轮刷新结束：
// 成功则依次获得新凭据并各自重放；失败则全部以同一个 *RefreshError 结束，
// 并广播一次会话过期。
//
// 状态和队列只在 mu 内读写，锁内不做任何 I/O。
type Coordinator struct {
	refresher Refresher
	opts      *options

	mu    sync.Mutex
	state State
	queue retryQueue

	refreshes atomic.Uint64
	failures  atomic.Uint64
	queued    atomic.Uint64
}

// New 创建 Coordinator。每个 API 客户端持有一个实例。
func New(refresher Refresher, opts ...Option) (*Coordinator, error) {
	if refresher == nil {
		return nil, ErrNilRefresher
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.attempts < 1 {
		return nil, ErrInvalidAttempts
	}
	return &Coordinator{refresher: refresher, opts: o}, nil
}

// State 返回当前状态。
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending 返回当前排队等待的请求数。
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Stats 返回累计统计。
func (c *Coordinator) Stats() Stats {
	return Stats{
		Refreshes: c.refreshes.Load(),
		Failures:  c.failures.Load(),
		Queued:    c.queued.Load(),
	}
}

// Authorize 为一个因凭据过期失败的请求取得新凭据并重放它。
//
// 空闲时调用方成为驱动者并发起唯一一次刷新；刷新进行中则排队等待。
// 返回值是重放的结果，或者刷新失败时的 *RefreshError。
// 排队后的请求不可取消，只会被这一轮刷新的结果唤醒；重放本身使用调用方 ctx。
func (c *Coordinator) Authorize(ctx context.Context, r Replayable) (err error) {
	if r == nil {
		return ErrNilReplayable
	}

	ctx, span := xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpAuthorize,
		Kind:      xmetrics.KindInternal,
	})
	driver := false
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{
			xmetrics.Bool(MetricsAttrDriver, driver),
		}})
	}()

	c.mu.Lock()
	if c.state == StateRefreshing {
		p := newPendingRetry(r)
		pos := c.queue.push(p)
		c.mu.Unlock()

		c.queued.Add(1)
		c.opts.logger.Debug("refresh in flight, request queued",
			slog.Int("position", pos),
		)

		out := p.wait()
		if out.err != nil {
			return out.err
		}
		return r.Replay(ctx)
	}
	c.state = StateRefreshing
	c.mu.Unlock()

	driver = true
	credential, refreshErr := c.refresh(ctx)
	if refreshErr != nil {
		return c.fail(ctx, refreshErr)
	}
	c.succeed(credential)

	r.WithCredential(credential)
	return r.Replay(ctx)
}

// Refresh 强制经过单飞流程取得新凭据，不重放任何请求。
// 若已有刷新在进行，则加入该轮并返回其结果。
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	capture := &credentialCapture{}
	if err := c.Authorize(ctx, capture); err != nil {
		return "", err
	}
	return capture.credential, nil
}

// refresh 调用刷新操作。刷新不受驱动者取消影响，只受传输层自身超时约束。
func (c *Coordinator) refresh(ctx context.Context) (credential string, err error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := xmetrics.Start(ctx, c.opts.observer, xmetrics.SpanOptions{
		Component: MetricsComponent,
		Operation: MetricsOpRefresh,
		Kind:      xmetrics.KindClient,
	})
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()
	// panic 按刷新失败处理，本轮照常结束并回到 IDLE
	defer func() {
		if r := recover(); r != nil {
			credential = ""
			err = fmt.Errorf("%w: %v", ErrRefresherPanicked, r)
		}
	}()

	c.refreshes.Add(1)
	c.opts.logger.Debug("refreshing credential")

	if c.opts.attempts == 1 {
		credential, err = c.refresher.Refresh(ctx)
	} else {
		credential, err = retry.NewWithData[string](
			retry.Context(ctx),
			retry.Attempts(c.opts.attempts),
			retry.Delay(c.opts.retryDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(c.opts.retryIf),
			retry.OnRetry(func(n uint, err error) {
				c.opts.logger.Debug("credential refresh attempt failed, retrying",
					slog.Uint64("attempt", uint64(n)+1),
					slog.String("error", err.Error()),
				)
			}),
		).Do(func() (string, error) {
			return c.refresher.Refresh(ctx)
		})
	}
	if err == nil && credential == "" {
		err = ErrEmptyCredential
	}
	return credential, err
}

// succeed 回到空闲，并按到达顺序把新凭据交给每个排队请求。
func (c *Coordinator) succeed(credential string) {
	// 先写入传输层，避免回到空闲后的新请求仍携带旧凭据
	if c.opts.onRefreshed != nil {
		c.opts.onRefreshed(credential)
	}

	c.mu.Lock()
	c.state = StateIdle
	waiters := c.queue.drain()
	c.mu.Unlock()

	c.opts.logger.Debug("credential refreshed",
		slog.Int("waiters", len(waiters)),
	)
	for _, p := range waiters {
		p.resolve(credential)
	}
}

// fail 回到空闲，拒绝全部排队请求，并广播一次会话过期。
func (c *Coordinator) fail(ctx context.Context, cause error) error {
	c.mu.Lock()
	c.state = StateIdle
	waiters := c.queue.drain()
	c.mu.Unlock()

	c.failures.Add(1)
	refreshErr := &RefreshError{Err: cause, Waiters: len(waiters)}
	c.opts.logger.Warn("credential refresh failed, session expired",
		slog.Int("waiters", len(waiters)),
		slog.String("error", cause.Error()),
	)

	for _, p := range waiters {
		p.reject(refreshErr)
	}
	if c.opts.notifier != nil {
		c.opts.notifier.Broadcast(context.WithoutCancel(ctx))
	}
	return refreshErr
}

// credentialCapture 只记录凭据，重放为空操作。
type credentialCapture struct {
	credential string
}

func (c *credentialCapture) WithCredential(credential string) {
	c.credential = credential
}

func (c *credentialCapture) Replay(context.Context) error {
	return nil
}
