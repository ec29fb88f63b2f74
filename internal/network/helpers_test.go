package network

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
	"github.com/brennhill/gasoline-network-tracker/internal/util"
)

// fakeApp records everything the tracker hands to the host.
type fakeApp struct {
	mu      sync.Mutex
	token   string
	service string // URL prefix treated as the tracking backend
	events  []types.NetworkRequest
	log     *zap.Logger
	logs    *observer.ObservedLogs
}

func newFakeApp() *fakeApp {
	core, logs := observer.New(zap.DebugLevel)
	return &fakeApp{log: zap.New(core), logs: logs}
}

func (a *fakeApp) SessionToken() string { return a.token }

func (a *fakeApp) IsServiceURL(rawURL string) bool {
	return a.service != "" && strings.HasPrefix(rawURL, a.service)
}

func (a *fakeApp) Safe(op string, fn func() error) bool {
	if err := util.Guard(fn); err != nil {
		a.log.Debug("safe call failed", zap.String("op", op), zap.Error(err))
		return false
	}
	return true
}

func (a *fakeApp) Send(ev types.NetworkRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *fakeApp) Logger() *zap.Logger { return a.log }

func (a *fakeApp) TimeOrigin() float64 { return 1_000_000 }

func (a *fakeApp) Events() []types.NetworkRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.NetworkRequest(nil), a.events...)
}

// stepClock advances 10ms on every reading.
type stepClock struct {
	mu  sync.Mutex
	now float64
}

func (c *stepClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += 10
	return c.now
}

// newTestTracker installs a tracker whose pipeline runs synchronously.
func newTestTracker(t *testing.T, srv *httptest.Server, opts Options) (*Env, *fakeApp, *Tracker) {
	t.Helper()
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	env := NewEnv(srv.Client(), WithClock(&stepClock{}), WithBaseURL(base))
	app := newFakeApp()
	tr, err := Install(env, app, opts)
	require.NoError(t, err)
	tr.dispatch = func(fn func()) { fn() }
	t.Cleanup(tr.Uninstall)
	return env, app, tr
}

// echoServer answers with the given status, a Set-Cookie header and a JSON body.
func echoServer(t *testing.T, status int) (*httptest.Server, chan *http.Request) {
	t.Helper()
	seen := make(chan *http.Request, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c := r.Clone(context.Background())
		c.Body = io.NopCloser(bytes.NewReader(body))
		seen <- c
		w.Header().Set("Set-Cookie", "sid=1")
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace", "abc")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true,"n":12345678901234567890}`))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func drain(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var sb strings.Builder
	buf := make([]byte, 7)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

func waitXHR(t *testing.T, x *XHR) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, x.Wait(ctx))
}

func part(s, path string) gjson.Result {
	return gjson.Get(s, path)
}
