package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/droidagent/internal/agent"
	"github.com/metalagman/droidagent/internal/config"
	"github.com/metalagman/droidagent/internal/events"
	"github.com/metalagman/droidagent/internal/session"
)

type stubRunner struct {
	broadcaster *events.Broadcaster
	release     chan struct{}
}

func (r *stubRunner) Execute(ctx context.Context, task string) *agent.Result {
	if r.broadcaster != nil {
		r.broadcaster.Publish(events.New(events.KindTaskStarted, "t1", map[string]any{"task": task}))
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return &agent.Result{Task: task, Error: "cancelled"}
		}
	}
	return &agent.Result{Task: task, Success: true}
}

type testConn struct {
	*websocket.Conn
}

func (c *testConn) readEvent(t *testing.T) events.Event {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := c.ReadMessage()
	require.NoError(t, err)
	var e events.Event
	require.NoError(t, json.Unmarshal(raw, &e))
	return e
}

func (c *testConn) readUntil(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	for i := 0; i < 20; i++ {
		e := c.readEvent(t)
		if e.Type == kind {
			return e
		}
	}
	t.Fatalf("never received %s", kind)
	return events.Event{}
}

func (c *testConn) sendCommand(t *testing.T, cmd Command) {
	t.Helper()
	raw, err := json.Marshal(cmd)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, raw))
}

func setup(t *testing.T, runner session.Runner) (*Server, *testConn) {
	t.Helper()
	broadcaster := events.NewBroadcaster()
	if r, ok := runner.(*stubRunner); ok {
		r.broadcaster = broadcaster
	}
	registry := session.NewRegistry(runner)
	cfg := config.Default()
	srv := NewServer(registry, broadcaster, nil, &cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, &testConn{conn}
}

func TestConnect_ReceivesConnectedEvent(t *testing.T) {
	_, conn := setup(t, &stubRunner{})

	e := conn.readEvent(t)
	assert.Equal(t, events.KindConnected, e.Type)
	assert.NotEmpty(t, e.Data["client_id"])
	assert.False(t, e.Timestamp.IsZero())
}

func TestStatus_Idle(t *testing.T) {
	_, conn := setup(t, &stubRunner{})
	conn.readEvent(t) // connected

	conn.sendCommand(t, Command{Command: "status"})
	e := conn.readUntil(t, events.KindProgressUpdate)
	assert.Equal(t, false, e.Data["running"])
}

func TestRun_EmitsTaskEvents(t *testing.T) {
	_, conn := setup(t, &stubRunner{})
	conn.readEvent(t) // connected

	conn.sendCommand(t, Command{Command: "run", Task: "open settings"})
	e := conn.readUntil(t, events.KindTaskStarted)
	assert.Equal(t, "open settings", e.Data["task"])
}

func TestRun_RequiresTask(t *testing.T) {
	_, conn := setup(t, &stubRunner{})
	conn.readEvent(t)

	conn.sendCommand(t, Command{Command: "run"})
	e := conn.readUntil(t, events.KindError)
	assert.Contains(t, e.Data["error"], "requires a task")
}

func TestRun_RejectsSecondConcurrentTask(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	_, conn := setup(t, runner)
	conn.readEvent(t)

	conn.sendCommand(t, Command{Command: "run", Task: "first"})
	conn.readUntil(t, events.KindProgressUpdate)

	conn.sendCommand(t, Command{Command: "run", Task: "second"})
	e := conn.readUntil(t, events.KindError)
	assert.Contains(t, e.Data["error"], "already running")

	close(runner.release)
}

func TestStop(t *testing.T) {
	runner := &stubRunner{release: make(chan struct{})}
	_, conn := setup(t, runner)
	conn.readEvent(t)

	conn.sendCommand(t, Command{Command: "run", Task: "long task"})
	conn.readUntil(t, events.KindProgressUpdate)

	conn.sendCommand(t, Command{Command: "stop"})
	e := conn.readUntil(t, events.KindStateChanged)
	assert.Equal(t, true, e.Data["stopped"])
}

func TestScreenshot_Disabled(t *testing.T) {
	_, conn := setup(t, &stubRunner{})
	conn.readEvent(t)

	conn.sendCommand(t, Command{Command: "screenshot"})
	e := conn.readUntil(t, events.KindError)
	assert.Contains(t, e.Data["error"], "disabled")
}

func TestConfig_OmitsAPIKey(t *testing.T) {
	_, conn := setup(t, &stubRunner{})
	conn.readEvent(t)

	conn.sendCommand(t, Command{Command: "config"})
	e := conn.readUntil(t, events.KindProgressUpdate)
	assert.NotEmpty(t, e.Data["model"])
	_, hasKey := e.Data["api_key"]
	assert.False(t, hasKey)
}

func TestUnknownCommand(t *testing.T) {
	_, conn := setup(t, &stubRunner{})
	conn.readEvent(t)

	conn.sendCommand(t, Command{Command: "fly"})
	e := conn.readUntil(t, events.KindError)
	assert.Contains(t, e.Data["error"], "unknown command")
}
