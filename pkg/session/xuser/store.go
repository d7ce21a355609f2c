package xuser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xtube/pkg/auth/xrefresh"
	"github.com/omeyang/xtube/pkg/session/xexpiry"
	"github.com/omeyang/xtube/pkg/transport/xapi"
)

// User 是当前登录用户。
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar,omitempty"`
	CoverImage   string    `json:"coverImage,omitempty"`
	WatchHistory []string  `json:"watchHistory,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// Credentials 是登录凭证。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // G117: 登录请求体字段
}

// API 是 Store 依赖的 API 客户端能力，*xapi.Client 实现了它。
type API interface {
	Do(ctx context.Context, req *xapi.Request) error
	Refresh(ctx context.Context) (string, error)
	SetCredential(credential string)
}

// Subscriber 是会话过期事件源，*xexpiry.Notifier 实现了它。
type Subscriber interface {
	Subscribe(l xexpiry.Listener) (unsubscribe func())
}

// Store 维护当前用户会话。
//
// 用户信息经 Persister 持久化，访问凭据只交给 API 客户端，不落盘。
// 订阅会话过期事件后，收到事件即登出并清除持久化记录。
type Store struct {
	api       API
	persister Persister
	logger    *slog.Logger

	mu      sync.RWMutex
	user    *User
	lastErr string
	loading bool

	sf          singleflight.Group
	expiring    atomic.Bool
	unsubscribe func()
}

// Option 配置 Store。
type Option func(*Store)

// WithPersister 设置持久化实现，默认 MemoryPersister。
func WithPersister(p Persister) Option {
	return func(s *Store) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExpiry 订阅会话过期事件。
func WithExpiry(sub Subscriber) Option {
	return func(s *Store) {
		if sub != nil {
			s.unsubscribe = sub.Subscribe(s)
		}
	}
}

// New 创建 Store。
func New(api API, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, ErrNilAPI
	}
	s := &Store{
		api:       api,
		persister: NewMemoryPersister(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close 取消会话过期订阅。
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Restore 从持久化记录恢复用户。记录不存在时保持未登录。
func (s *Store) Restore(ctx context.Context) error {
	rec, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}
	if rec == nil || rec.User == nil {
		return nil
	}
	s.mu.Lock()
	s.user = rec.User
	s.mu.Unlock()
	return nil
}

type loginResponse struct {
	Data struct {
		User        *User  `json:"user"`
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

// Login 登录并保存用户。登录请求不触发凭据刷新。
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	s.begin()

	var resp loginResponse
	err := s.api.Do(ctx, &xapi.Request{
		Method:    http.MethodPost,
		Path:      xapi.PathLogin,
		Body:      creds,
		Response:  &resp,
		NoRefresh: true,
	})
	if err == nil && resp.Data.User == nil {
		err = ErrMissingUser
	}
	if err != nil {
		s.finish(err)
		s.logger.Warn("login failed", slog.String("error", err.Error()))
		return err
	}

	if resp.Data.AccessToken != "" {
		s.api.SetCredential(resp.Data.AccessToken)
	}
	s.setUser(resp.Data.User)
	s.finish(nil)
	s.persist(ctx)
	s.logger.Info("login successful", slog.String("user", resp.Data.User.Username))
	return nil
}

// Logout 登出。无论服务端调用是否成功，本地用户、凭据和持久化记录都会被清除，
// 返回值只反映服务端调用结果。
func (s *Store) Logout(ctx context.Context) error {
	s.begin()

	err := s.api.Do(ctx, &xapi.Request{
		Method:    http.MethodPost,
		Path:      xapi.PathLogout,
		Body:      struct{}{},
		NoRefresh: true,
	})
	if err != nil {
		s.logger.Warn("logout request failed", slog.String("error", err.Error()))
	}

	s.api.SetCredential("")
	s.setUser(nil)
	s.finish(nil)
	if derr := s.persister.Delete(ctx); derr != nil {
		s.logger.Warn("clear persisted session failed", slog.String("error", derr.Error()))
	}
	return err
}

// RefreshAccessToken 强制刷新凭据。失败时清除用户并记录会话过期。
func (s *Store) RefreshAccessToken(ctx context.Context) bool {
	if _, err := s.api.Refresh(ctx); err != nil {
		s.mu.Lock()
		s.user = nil
		s.lastErr = SessionExpiredMessage
		s.mu.Unlock()
		if derr := s.persister.Delete(ctx); derr != nil {
			s.logger.Warn("clear persisted session failed", slog.String("error", derr.Error()))
		}
		s.logger.Debug("access token refresh failed", slog.String("error", err.Error()))
		return false
	}
	s.logger.Debug("access token refreshed")
	return true
}

type currentUserResponse struct {
	Data *User `json:"data"`
}

// FetchCurrentUser 重新拉取当前用户。未登录时不发请求。
// 并发调用合并为一次请求；共享请求不受任一调用方取消的影响，
// 每个调用方只在自己的 ctx 结束时提前返回。
func (s *Store) FetchCurrentUser(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return nil
	}

	ch := s.sf.DoChan("current-user", func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		s.begin()
		var resp currentUserResponse
		err := s.api.Do(ctx, &xapi.Request{
			Method:   http.MethodGet,
			Path:     xapi.PathCurrentUser,
			Response: &resp,
		})
		if err != nil {
			s.finish(err)
			return nil, err
		}
		// 凭据永久失效时请求以空结果成功返回，保留原用户
		if resp.Data != nil && s.IsAuthenticated() {
			s.setUser(resp.Data)
			s.persist(ctx)
		}
		s.finish(nil)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnSessionExpired 实现 xexpiry.Listener：登出并清除持久化记录。
// 登出请求本身不会触发刷新；重入的通知被忽略。
func (s *Store) OnSessionExpired(ctx context.Context, _ xexpiry.Event) {
	if !s.expiring.CompareAndSwap(false, true) {
		return
	}
	defer s.expiring.Store(false)

	_ = s.Logout(ctx) //nolint:errcheck // 已在 Logout 内记录
	s.mu.Lock()
	s.lastErr = SessionExpiredMessage
	s.mu.Unlock()
	s.logger.Warn("session expired, please log in again")
}

// IsAuthenticated 报告是否有已登录用户。
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User 返回当前用户的副本，未登录时为 nil。
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	u.WatchHistory = append([]string(nil), s.user.WatchHistory...)
	return &u
}

// LastError 返回最近一次失败的错误信息。
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Loading 报告是否有请求进行中。
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Store) finish(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = errorMessage(err)
	}
	s.mu.Unlock()
}

func (s *Store) setUser(u *User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

// persist 保存当前用户，失败只记录日志。
func (s *Store) persist(ctx context.Context) {
	if err := s.persister.Save(ctx, &Record{User: s.User()}); err != nil {
		s.logger.Warn("persist session failed", slog.String("error", err.Error()))
	}
}

// errorMessage 优先使用服务端返回的 message。
func errorMessage(err error) string {
	if xrefresh.IsRefreshFailure(err) {
		return SessionExpiredMessage
	}
	var apiErr *xapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
