package xexpiry

import (
	"context"
	"log/slog"
	"sync"
)

// Event 表示会话已结束且无法恢复。没有负载。
type Event struct{}

// Listener 接收会话过期通知。
// 实现应当幂等：同一会话可能因多次刷新失败收到多次通知。
type Listener interface {
	OnSessionExpired(ctx context.Context, ev Event)
}

// ListenerFunc 将函数适配为 Listener。
type ListenerFunc func(ctx context.Context, ev Event)

// OnSessionExpired 调用 f(ctx, ev)。
func (f ListenerFunc) OnSessionExpired(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Notifier 是会话过期的广播点。
//
// 广播是即发即弃的：不跟踪确认，不重投。
// 监听者在广播 goroutine 上依次同步执行，单个监听者 panic 会被恢复并记录，
// 不影响其余监听者。
type Notifier struct {
	mu        sync.RWMutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
	logger    *slog.Logger
}

// Option 配置 Notifier。
type Option func(*Notifier)

// WithLogger 设置日志记录器，nil 时使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New 创建 Notifier。
func New(opts ...Option) *Notifier {
	n := &Notifier{
		listeners: make(map[uint64]Listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe 注册监听者，返回取消订阅函数。
// 取消函数可重复调用。nil 监听者被忽略。
func (n *Notifier) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	n.order = append(n.order, id)
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, id)
	for i, v := range n.order {
		if v == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Listeners 返回当前监听者数量。
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast 按订阅顺序通知所有监听者。
// 调用期间的订阅变更不影响本次广播。
func (n *Notifier) Broadcast(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	n.mu.RLock()
	snapshot := make([]Listener, 0, len(n.order))
	for _, id := range n.order {
		snapshot = append(snapshot, n.listeners[id])
	}
	n.mu.RUnlock()

	n.logger.Warn("session expired, notifying listeners",
		slog.Int("listeners", len(snapshot)),
	)

	for _, l := range snapshot {
		n.deliver(ctx, l)
	}
}

func (n *Notifier) deliver(ctx context.Context, l Listener) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("session expiry listener panicked",
				slog.Any("panic", r),
			)
		}
	}()
	l.OnSessionExpired(ctx, Event{})
}
