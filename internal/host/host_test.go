package host

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/brennhill/gasoline-network-tracker/internal/network"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
	"github.com/brennhill/gasoline-network-tracker/internal/util"
)

func TestNew_GeneratesSessionToken(t *testing.T) {
	t.Parallel()
	h := New(Options{})

	_, err := uuid.Parse(h.SessionToken())
	require.NoError(t, err)

	prev := h.SessionToken()
	next := h.RotateSession()
	assert.NotEqual(t, prev, next)
	assert.Equal(t, next, h.SessionToken())

	h.EndSession()
	assert.Empty(t, h.SessionToken())
}

func TestIsServiceURL(t *testing.T) {
	t.Parallel()
	h := New(Options{ServiceURLs: []string{"https://ingest.example.com/v1", "https://API.other.io"}})

	tests := []struct {
		url  string
		want bool
	}{
		{"https://ingest.example.com/v1", true},
		{"https://ingest.example.com/v1/batch?x=1", true},
		{"https://ingest.example.com/v10", false},
		{"https://ingest.example.com/", false},
		{"http://ingest.example.com/v1", false},
		{"https://api.other.io/anything", true},
		{"/relative", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.IsServiceURL(tt.url), tt.url)
	}
}

func TestSafe(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.DebugLevel)
	h := New(Options{Logger: zap.New(core)})

	assert.True(t, h.Safe("ok", func() error { return nil }))
	assert.False(t, h.Safe("err", func() error { return errors.New("nope") }))
	assert.False(t, h.Safe("panic", func() error { panic("boom") }))

	assert.Equal(t, 1, logs.FilterMessage("guarded call failed").Len())
	panics := logs.FilterMessage("recovered panic").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "panic", panics[0].ContextMap()["op"])
}

func TestSend_QueueAndCursor(t *testing.T) {
	t.Parallel()
	h := New(Options{QueueSize: 2})

	h.Send(types.NetworkRequest{URL: "a"})
	events, cursor := h.EventsSince(types.QueueCursor{})
	require.Len(t, events, 1)

	h.Send(types.NetworkRequest{URL: "b"})
	h.Send(types.NetworkRequest{URL: "c"})
	events, _ = h.EventsSince(cursor)
	assert.Equal(t, []string{"b", "c"}, urls(events))
	assert.Equal(t, []string{"b", "c"}, urls(h.Events()))

	stats := h.Stats()
	assert.Equal(t, types.QueueStats{Queued: 2, Capacity: 2, Total: 3}, stats)
	assert.Equal(t, int64(1), stats.Evicted())
}

func TestSubscribe(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.DebugLevel)
	h := New(Options{Logger: zap.New(core)})

	ch, cancel := h.Subscribe(1)
	h.Send(types.NetworkRequest{URL: "a"})
	h.Send(types.NetworkRequest{URL: "b"})

	assert.Equal(t, "a", (<-ch).URL)
	assert.Equal(t, 1, logs.FilterMessage("subscriber is falling behind, event dropped").Len())

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	h.Send(types.NetworkRequest{URL: "c"})
}

func TestTimeOrigin(t *testing.T) {
	t.Parallel()
	clock := util.NewMonotonicClock()
	h := New(Options{Clock: clock})
	assert.Same(t, clock, h.Clock())

	now := float64(time.Now().UnixNano()) / float64(time.Millisecond)
	assert.InDelta(t, now, h.TimeOrigin()+clock.Now(), 50)
}

func TestHost_WithTracker(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Session-Echo", r.Header.Get(network.DefaultSessionTokenHeader))
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	h := New(Options{ServiceURLs: []string{srv.URL + "/ingest"}})
	env := network.NewEnv(srv.Client(), network.WithClock(h.Clock()), network.WithLogger(h.Logger()))
	tr, err := network.Install(env, h, network.Options{SessionTokenHeader: network.DefaultSessionTokenHeader})
	require.NoError(t, err)
	defer tr.Uninstall()

	events, cancel := h.Subscribe(4)
	defer cancel()

	resp, err := env.Fetch(context.Background(), srv.URL+"/ingest/batch", nil)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp, err = env.Fetch(context.Background(), srv.URL+"/page", nil)
	require.NoError(t, err)
	assert.Equal(t, h.SessionToken(), resp.Header.Get("X-Session-Echo"))
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	select {
	case ev := <-events:
		assert.Equal(t, srv.URL+"/page", ev.URL)
		assert.Equal(t, types.KindFetch, ev.Type)
		assert.Greater(t, ev.Timestamp, h.TimeOrigin())
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}
	assert.Equal(t, int64(1), h.Stats().Total)
}

func urls(events []types.NetworkRequest) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.URL
	}
	return out
}
