package xapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI 模拟后端：只有最近一次刷新签发的凭据有效。
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	valid       string
	issued      int
	failRefresh bool
	flatShape   bool
	emptyToken  bool
	needCookie  bool
	gate        chan struct{}
	seen        []seenRequest

	refreshCalls atomic.Int32
}

type seenRequest struct {
	path          string
	authorization string
	requestID     string
	body          string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

// block 让下一次刷新阻塞，直到返回的函数被调用。
func (a *fakeAPI) block() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gate = gate
	a.mu.Unlock()
	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	a.t.Cleanup(release)
	return release
}

func (a *fakeAPI) setValid(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid = token
}

func (a *fakeAPI) requests(path string) []seenRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []seenRequest
	for _, r := range a.seen {
		if r.path == path {
			out = append(out, r)
		}
	}
	return out
}

func (a *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	a.mu.Lock()
	a.seen = append(a.seen, seenRequest{
		path:          r.URL.Path,
		authorization: r.Header.Get("Authorization"),
		requestID:     r.Header.Get(HeaderRequestID),
		body:          string(body),
	})
	valid := a.valid
	a.mu.Unlock()

	switch {
	case r.URL.Path == PathRefreshToken:
		a.handleRefresh(w, r)
	case r.URL.Path == "/broken":
		writeJSON(w, http.StatusInternalServerError, map[string]any{"code": 5001, "message": "boom"})
	case r.URL.Path == "/revoked":
		writeJSON(w, http.StatusForbidden, map[string]any{"message": DefaultInvalidTokenMessage})
	case r.URL.Path == "/revoked-401":
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": DefaultInvalidTokenMessage})
	case r.URL.Path == "/always-401":
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
	case valid == "" || r.Header.Get("Authorization") != "Bearer "+valid:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "jwt expired"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"path":  r.URL.Path,
			"token": strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
			"echo":  string(body),
		})
	}
}

func (a *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	a.refreshCalls.Add(1)

	a.mu.Lock()
	gate := a.gate
	a.gate = nil
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.needCookie {
		if c, err := r.Cookie("refreshToken"); err != nil || c.Value != "r1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "missing refresh cookie"})
			return
		}
	}
	if a.failRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "refresh token expired"})
		return
	}
	if a.emptyToken {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{}})
		return
	}

	a.issued++
	a.valid = fmt.Sprintf("T%d", a.issued+1)
	if a.flatShape {
		writeJSON(w, http.StatusOK, map[string]any{"accessToken": a.valid})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"accessToken": a.valid}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // 测试服务端
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient 创建指向 fakeAPI 的客户端，初始凭据为 T1。
func newTestClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger()), WithCredential("T1")}, opts...)
	c, err := New(&Config{Host: api.server.URL, AllowInsecure: true}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type echoResponse struct {
	Path  string `json:"path"`
	Token string `json:"token"`
	Echo  string `json:"echo"`
}
