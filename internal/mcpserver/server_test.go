package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/droidagent/internal/adb"
	"github.com/metalagman/droidagent/internal/agent"
	"github.com/metalagman/droidagent/internal/uitree"
)

type stubController struct {
	state   *adb.ScreenState
	actions []string
}

func newStubController() *stubController {
	return &stubController{
		state: &adb.ScreenState{
			Package:  "com.android.settings",
			Activity: "Settings",
			Elements: []uitree.Element{
				{Index: 0, Text: "Network", Clickable: true, Bounds: uitree.Rect{Left: 0, Top: 200, Right: 1080, Bottom: 320}},
			},
			Timestamp: time.Now(),
		},
	}
}

func (c *stubController) GetScreenState(context.Context) (*adb.ScreenState, error) {
	return c.state, nil
}

func (c *stubController) Tap(_ context.Context, x, y int) adb.Result {
	c.actions = append(c.actions, "tap")
	return adb.Result{Success: true, Action: adb.ActionTap}
}

func (c *stubController) Swipe(_ context.Context, _, _, _, _ int, _ time.Duration) adb.Result {
	c.actions = append(c.actions, "swipe")
	return adb.Result{Success: true, Action: adb.ActionSwipe}
}

func (c *stubController) SwipeDirection(_ context.Context, dir string) adb.Result {
	c.actions = append(c.actions, "swipe-"+dir)
	return adb.Result{Success: true, Action: adb.ActionSwipe}
}

func (c *stubController) TypeText(_ context.Context, text string) adb.Result {
	c.actions = append(c.actions, "type "+text)
	return adb.Result{Success: true, Action: adb.ActionType}
}

type stubRunner struct {
	result *agent.Result
	tasks  []string
}

func (r *stubRunner) Execute(_ context.Context, task string) *agent.Result {
	r.tasks = append(r.tasks, task)
	return r.result
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestHandleExecuteTask(t *testing.T) {
	runner := &stubRunner{result: &agent.Result{
		Success: true, Task: "open settings",
		Steps: []agent.Step{
			{Number: 1, Action: "launch", Result: adb.Result{Success: true}},
			{Number: 2, Action: "done", Result: adb.Result{Success: true, Message: "Task completed"}},
		},
		TotalTokens: 300, Duration: 2 * time.Second,
	}}
	s := New(runner, newStubController(), nil)

	res, err := s.handleExecuteTask(context.Background(), callRequest(map[string]any{"task": "open settings"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text := textContent(t, res)
	assert.Contains(t, text, "success: true")
	assert.Contains(t, text, "action: launch")
	assert.Contains(t, text, "total_tokens: 300")
	assert.Equal(t, []string{"open settings"}, runner.tasks)
}

func TestHandleExecuteTask_MissingTask(t *testing.T) {
	s := New(&stubRunner{}, newStubController(), nil)

	res, err := s.handleExecuteTask(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleGetScreenState(t *testing.T) {
	s := New(&stubRunner{}, newStubController(), nil)

	res, err := s.handleGetScreenState(context.Background(), callRequest(nil))
	require.NoError(t, err)
	text := textContent(t, res)
	assert.Contains(t, text, "App:settings")
	assert.Contains(t, text, "Network")

	res, err = s.handleGetScreenState(context.Background(), callRequest(map[string]any{"verbose": true}))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, res), "Package: com.android.settings")
}

func TestHandleTap_ByIndex(t *testing.T) {
	ctrl := newStubController()
	s := New(&stubRunner{}, ctrl, nil)

	res, err := s.handleTap(context.Background(), callRequest(map[string]any{"index": float64(0)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"tap"}, ctrl.actions)
}

func TestHandleTap_InvalidIndex(t *testing.T) {
	s := New(&stubRunner{}, newStubController(), nil)

	res, err := s.handleTap(context.Background(), callRequest(map[string]any{"index": float64(7)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleTap_MissingParams(t *testing.T) {
	s := New(&stubRunner{}, newStubController(), nil)

	res, err := s.handleTap(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleSwipe(t *testing.T) {
	ctrl := newStubController()
	s := New(&stubRunner{}, ctrl, nil)

	res, err := s.handleSwipe(context.Background(), callRequest(map[string]any{"direction": "up"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.handleSwipe(context.Background(), callRequest(map[string]any{
		"x1": float64(0), "y1": float64(0), "x2": float64(100), "y2": float64(500),
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	assert.Equal(t, []string{"swipe-up", "swipe"}, ctrl.actions)
}

func TestHandleType(t *testing.T) {
	ctrl := newStubController()
	s := New(&stubRunner{}, ctrl, nil)

	res, err := s.handleType(context.Background(), callRequest(map[string]any{"text": "hello"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, []string{"type hello"}, ctrl.actions)

	res, err = s.handleType(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleScreenshot_Disabled(t *testing.T) {
	s := New(&stubRunner{}, newStubController(), nil)

	res, err := s.handleScreenshot(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
