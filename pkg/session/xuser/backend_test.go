package xuser

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtube/pkg/session/xexpiry"
	"github.com/omeyang/xtube/pkg/transport/xapi"
)

// fakeBackend 模拟用户服务：登录下发 Cookie 和凭据，刷新依赖 Cookie。
type fakeBackend struct {
	server *httptest.Server

	mu          sync.Mutex
	valid       string
	failRefresh bool
	revoked     bool
	fullName    string

	logins       atomic.Int32
	logouts      atomic.Int32
	refreshes    atomic.Int32
	currentUsers atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{fullName: "Ada Lovelace"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+xapi.PathLogin, b.login)
	mux.HandleFunc("POST "+xapi.PathLogout, b.logout)
	mux.HandleFunc("POST "+xapi.PathRefreshToken, b.refresh)
	mux.HandleFunc("GET "+xapi.PathCurrentUser, b.currentUser)
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid != "" && r.Header.Get("Authorization") == "Bearer "+b.valid
}

func (b *fakeBackend) user() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]any{
		"id":       "u1",
		"username": "ada",
		"email":    "ada@example.com",
		"fullName": b.fullName,
	}
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	b.logins.Add(1)
	var creds Credentials
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}
	b.set(func(b *fakeBackend) { b.valid = "A1" })
	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"user": b.user(), "accessToken": "A1"}})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	b.logouts.Add(1)
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (b *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshes.Add(1)
	c, err := r.Cookie("refreshToken")
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil || c.Value != "r1" || b.failRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "refresh token expired"})
		return
	}
	b.valid = "A2"
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"accessToken": "A2"}})
}

func (b *fakeBackend) currentUser(w http.ResponseWriter, r *http.Request) {
	b.currentUsers.Add(1)
	b.mu.Lock()
	revoked := b.revoked
	b.mu.Unlock()
	if revoked {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": xapi.DefaultInvalidTokenMessage})
		return
	}
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": b.user()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // 测试服务端
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stack 是接好线的客户端、过期通知和 Store。
type stack struct {
	backend *fakeBackend
	client  *xapi.Client
	expiry  *xexpiry.Notifier
	store   *Store
}

func newStack(t *testing.T, opts ...Option) *stack {
	t.Helper()
	b := newFakeBackend(t)
	expiry := xexpiry.New(xexpiry.WithLogger(quietLogger()))
	client, err := xapi.New(&xapi.Config{Host: b.server.URL, AllowInsecure: true},
		xapi.WithLogger(quietLogger()),
		xapi.WithNotifier(expiry),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	opts = append([]Option{WithLogger(quietLogger()), WithExpiry(expiry)}, opts...)
	store, err := New(client, opts...)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return &stack{backend: b, client: client, expiry: expiry, store: store}
}
