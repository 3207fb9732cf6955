package core

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/matheus3301/nchat/internal/bus"
	"github.com/matheus3301/nchat/internal/config"
	"github.com/matheus3301/nchat/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// fakeBackend serves the account, peer and thread endpoints plus the push
// channel. Payloads written to push are delivered to the connected client.
// The first acctFailures account lookups answer 503.
func fakeBackend(t *testing.T, push <-chan string, acctFailures int32) *httptest.Server {
	t.Helper()
	var lookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/nostrchat/api/v1/nostracct", func(w http.ResponseWriter, r *http.Request) {
		if lookups.Add(1) <= acctFailures {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"id":"acct1","public_key":"me","config":{"active":true}}`)
	})
	mux.HandleFunc("/nostrchat/api/v1/peer", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"public_key":"p1","unread_messages":1,"profile":{"name":"alice"}}]`)
	})
	mux.HandleFunc("/nostrchat/api/v1/message/p1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"1","event_id":"e1","message":"hi","public_key":"p1","type":-1,"incoming":true}]`)
	})
	mux.HandleFunc("/api/v1/ws/acct1", func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = c.CloseNow() }()
		ctx := c.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-push:
				if err := c.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
					return
				}
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCoreLifecycle(t *testing.T) {
	// Use a short path to stay under the Unix socket path limit.
	tmpDir, err := os.MkdirTemp("/tmp", "nchat-test-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(tmpDir) }()
	t.Setenv("NCHAT_HOME", tmpDir)

	push := make(chan string, 1)
	backend := fakeBackend(t, push, 0)
	socketPath := filepath.Join(tmpDir, "h.sock")

	var c *Core
	app := fxtest.New(t,
		fx.NopLogger,
		Module(Params{
			ProfileName: "test",
			SocketPath:  socketPath,
			Logger:      zap.NewNop(),
			Profile: config.Profile{
				APIURL:         backend.URL,
				InvoiceKey:     "inkey",
				AdminKey:       "adminkey",
				HealthInterval: 50 * time.Millisecond,
				Debounce:       10 * time.Millisecond,
				RetryDelay:     10 * time.Millisecond,
				RequestTimeout: 2 * time.Second,
			},
		}),
		fx.Populate(&c),
	)
	app.RequireStart()

	require.Eventually(t, func() bool { return c.Machine.Current() == status.Open }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(c.Directory.Peers()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, "acct1", c.Account().ID)
	assert.Equal(t, 1, c.Directory.UnreadCount())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	serving, err := Probe(ctx, socketPath)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, serving)

	require.NoError(t, c.Thread.SelectPeer(ctx, "p1"))
	require.Len(t, c.Thread.Messages(), 1)

	push <- `{"type":"dm:-1","customerPubkey":"p1","dm":{"id":"1","event_id":"e1","message":"hi","public_key":"p1","type":-1,"incoming":true}}`
	push <- `{"type":"dm:-1","customerPubkey":"p1","dm":{"id":"2","event_id":"e2","message":"again","public_key":"p1","type":-1,"incoming":true,"event_created_at":1700000000}}`
	require.Eventually(t, func() bool { return len(c.Thread.Messages()) == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.Engine.LastEvent().Unix() == 1700000000 }, time.Second, 10*time.Millisecond)

	app.RequireStop()
	assert.Equal(t, status.Disconnected, c.Machine.Current())
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be removed on stop")
}

func testParams(tmpDir, url string) Params {
	return Params{
		ProfileName: "test",
		SocketPath:  filepath.Join(tmpDir, "h.sock"),
		Logger:      zap.NewNop(),
		Profile: config.Profile{
			APIURL:         url,
			InvoiceKey:     "inkey",
			AdminKey:       "adminkey",
			HealthInterval: 50 * time.Millisecond,
			Debounce:       10 * time.Millisecond,
			RetryDelay:     10 * time.Millisecond,
			RequestTimeout: 2 * time.Second,
		},
	}
}

func TestCoreRetriesAccountAfterOutage(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "nchat-retry-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(tmpDir) }()
	t.Setenv("NCHAT_HOME", tmpDir)

	backend := fakeBackend(t, make(chan string), 2)

	var c *Core
	app := fxtest.New(t,
		fx.NopLogger,
		Module(testParams(tmpDir, backend.URL)),
		fx.Populate(&c),
	)
	notices, unsubscribe := c.Bus.Subscribe(bus.NoticeError, 8)
	defer unsubscribe()
	app.RequireStart()

	require.Eventually(t, func() bool { return c.Machine.Current() == status.Open }, 3*time.Second, 10*time.Millisecond)
	require.NotNil(t, c.Account())
	assert.Equal(t, "acct1", c.Account().ID)
	require.Eventually(t, func() bool { return len(c.Directory.Peers()) == 1 }, 3*time.Second, 10*time.Millisecond)

	app.RequireStop()
	// Two failed lookups produce a single error notice.
	assert.Len(t, notices, 1)
}

func TestCoreStopsRetryingOnShutdown(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "nchat-down-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(tmpDir) }()
	t.Setenv("NCHAT_HOME", tmpDir)

	backend := fakeBackend(t, make(chan string), 1<<30)

	var c *Core
	app := fxtest.New(t,
		fx.NopLogger,
		Module(testParams(tmpDir, backend.URL)),
		fx.Populate(&c),
	)
	app.RequireStart()
	time.Sleep(200 * time.Millisecond)
	app.RequireStop()

	assert.Nil(t, c.Account())
	assert.Equal(t, status.Disconnected, c.Machine.Current())
}

func TestHealthServerFollowsChannelState(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "nchat-health-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "h.sock")
	b := bus.New()
	machine := status.NewMachine(b)
	srv, err := NewHealthServer(Params{SocketPath: socketPath}, b, machine, zap.NewNop())
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := Probe(ctx, socketPath)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, st)

	require.NoError(t, machine.Transition(status.Connecting))
	require.NoError(t, machine.Transition(status.Open))
	require.Eventually(t, func() bool {
		st, err := Probe(ctx, socketPath)
		return err == nil && st == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthServerReadsMachineNotPayload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "nchat-health-*")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "h.sock")
	machine := status.NewMachine(nil)
	require.NoError(t, machine.Transition(status.Connecting))
	require.NoError(t, machine.Transition(status.Open))

	srv, err := NewHealthServer(Params{SocketPath: socketPath}, nil, machine, zap.NewNop())
	require.NoError(t, err)
	go func() { _ = srv.Start() }()
	defer srv.Stop(context.Background())

	// An out of date event still resolves to the machine's current state.
	events := make(chan bus.Event, 1)
	events <- bus.Event{
		Kind:    bus.ChannelStatusChanged,
		Payload: status.StatusChange{From: status.Open, To: status.Closing},
	}
	go srv.follow(events, func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Eventually(t, func() bool {
		st, err := Probe(ctx, socketPath)
		return err == nil && st == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}
