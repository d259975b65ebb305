package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/racer/internal/core/events/bus"
	"github.com/zeusync/racer/internal/core/observability/log"
)

func newTestServer(t *testing.T, cfg Config, opts ...Option) (*Server, string) {
	t.Helper()
	srv := NewServer(cfg, log.Nop(), opts...)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, hs.URL
}

func dial(t *testing.T, base, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(base, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, srv *Server, n int64) {
	t.Helper()
	require.Eventually(t, func() bool { return srv.GetStats().ClientCount == n }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketCommandsReachLoop(t *testing.T) {
	srv, base := newTestServer(t, DefaultServerConfig())
	conn := dial(t, base, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"jump"}`)))
	require.NoError(t, conn.WriteJSON(Command{Action: ActionPress, Key: "w"}))
	require.NoError(t, conn.WriteJSON(Command{Action: ActionStart}))

	var got []Command
	for len(got) < 2 {
		select {
		case cmd := <-srv.Commands():
			got = append(got, cmd)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, ActionPress, got[0].Action)
	assert.Equal(t, "w", got[0].Key)
	assert.NotEmpty(t, got[0].ClientID)
	assert.Equal(t, ActionStart, got[1].Action)
}

func TestBroadcastFramesNotifications(t *testing.T) {
	srv, base := newTestServer(t, DefaultServerConfig())
	conn := dial(t, base, "")
	waitForClients(t, srv, 1)

	b := bus.New()
	require.NoError(t, srv.Bind(b, "fuel-updated"))
	require.NoError(t, b.Publish(bus.NewEvent("fuel-updated", "test", map[string]float64{"fuel": 42})))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Type string             `json:"type"`
		Data map[string]float64 `json:"data"`
		TS   int64              `json:"ts"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "fuel-updated", frame.Type)
	assert.Equal(t, 42.0, frame.Data["fuel"])
	assert.Positive(t, frame.TS)
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.SendBufferSize = 1
	srv := NewServer(cfg, log.Nop())

	session := &ClientSession{ID: "slow", Active: 1, send: make(chan []byte, 1)}
	srv.clients.Store(session.ID, session)

	require.NoError(t, srv.Broadcast("bump", nil))
	require.NoError(t, srv.Broadcast("bump", nil))

	assert.Equal(t, int32(0), session.Active)
	assert.False(t, session.enqueue([]byte("x")))
}

func TestWebSocketTokenAuth(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Token = "supersecrettoken"
	srv, base := newTestServer(t, cfg)
	u := "ws" + strings.TrimPrefix(base, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, _, err = websocket.DefaultDialer.Dial(u+"?token=invalid", nil)
	require.Error(t, err)

	dial(t, base, "?token=supersecrettoken")
	waitForClients(t, srv, 1)
}

func TestWebSocketMaxClients(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 1
	srv, base := newTestServer(t, cfg)

	dial(t, base, "")
	waitForClients(t, srv, 1)

	u := "ws" + strings.TrimPrefix(base, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.EqualValues(t, 1, srv.GetStats().ClientCount)
}

func TestWebSocketMaxClientsConcurrentDials(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 2
	srv, base := newTestServer(t, cfg)
	u := "ws" + strings.TrimPrefix(base, "http") + "/ws"

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		accepted []*websocket.Conn
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
					rejected++
				}
				return
			}
			accepted = append(accepted, conn)
		}()
	}
	wg.Wait()
	t.Cleanup(func() {
		for _, c := range accepted {
			_ = c.Close()
		}
	})

	assert.Len(t, accepted, 2)
	assert.Equal(t, 6, rejected)
	waitForClients(t, srv, 2)
}

func TestWebSocketFailedUpgradeFreesSlot(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxClients = 1
	srv, base := newTestServer(t, cfg)

	resp, err := http.Get(base + "/ws")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	waitForClients(t, srv, 0)

	dial(t, base, "")
	waitForClients(t, srv, 1)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "racer_up 1\n")
	})
	_, base := newTestServer(t, DefaultServerConfig(),
		WithMetricsHandler(metrics),
		WithStatus(func() any { return map[string]string{"phase": "racing"} }),
	)

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string            `json:"status"`
		Race   map[string]string `json:"race"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "racing", health.Race["phase"])

	resp2, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "racer_up")
}

func TestServerLifecycle(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv := NewServer(cfg, log.Nop())

	require.NoError(t, srv.Start(t.Context()))
	assert.ErrorIs(t, srv.Start(t.Context()), ErrServerAlreadyRunning)
	require.NotNil(t, srv.Addr())
	assert.True(t, srv.GetStats().Running)

	require.NoError(t, srv.Close())
	assert.False(t, srv.GetStats().Running)
	assert.ErrorIs(t, srv.Start(t.Context()), ErrServerClosed)
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"press", `{"action":"press","key":"w"}`, false},
		{"release", `{"action":"release","key":" "}`, false},
		{"start", `{"action":"start"}`, false},
		{"press without key", `{"action":"press"}`, true},
		{"unknown action", `{"action":"fly","key":"w"}`, true},
		{"not json", `w`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand([]byte(tt.in))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultServerConfig().Validate())
	cfg := DefaultServerConfig()
	cfg.MaxClients = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
