// Package mcpserver exposes the agent and direct device actions as MCP
// tools over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/metalagman/droidagent/internal/adb"
	"github.com/metalagman/droidagent/internal/agent"
	"github.com/metalagman/droidagent/internal/screenshot"
)

// Runner executes one task to completion.
type Runner interface {
	Execute(ctx context.Context, task string) *agent.Result
}

// Controller is the subset of the adb controller the tools need.
type Controller interface {
	GetScreenState(ctx context.Context) (*adb.ScreenState, error)
	Tap(ctx context.Context, x, y int) adb.Result
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) adb.Result
	SwipeDirection(ctx context.Context, direction string) adb.Result
	TypeText(ctx context.Context, text string) adb.Result
}

// Config selects the serving transport.
type Config struct {
	Transport string // stdio or streamable-http
	Port      int
}

// Server wires the MCP tools over a device controller and a task runner.
type Server struct {
	runner      Runner
	device      Controller
	screenshots *screenshot.Pipeline

	// the bridge serves one caller at a time
	deviceMu sync.Mutex

	mcp *mcpserver.MCPServer
}

// New creates a server with all tools registered. The screenshot
// pipeline may be nil when screenshots are disabled.
func New(runner Runner, device Controller, screenshots *screenshot.Pipeline) *Server {
	s := &Server{
		runner:      runner,
		device:      device,
		screenshots: screenshots,
	}
	s.mcp = mcpserver.NewMCPServer("droidagent", "1.0.0")
	s.registerTools()
	return s
}

// Serve starts the configured transport and blocks.
func (s *Server) Serve(cfg Config) error {
	switch cfg.Transport {
	case "", "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("execute_task",
			mcp.WithDescription("Execute a natural-language automation task on the connected Android device and return the step-by-step result"),
			mcp.WithString("task", mcp.Description("Natural language task, e.g. 'open Chrome and search for weather'"), mcp.Required()),
		),
		s.handleExecuteTask,
	)

	s.mcp.AddTool(
		mcp.NewTool("get_screen_state",
			mcp.WithDescription("Read the current screen: foreground app, activity, and the ranked interactive UI elements"),
			mcp.WithBoolean("verbose", mcp.Description("Return full element attributes instead of the compact encoding")),
		),
		s.handleGetScreenState,
	)

	s.mcp.AddTool(
		mcp.NewTool("screenshot",
			mcp.WithDescription("Capture a screenshot from the device and return its local file path"),
			mcp.WithBoolean("annotate", mcp.Description("Overlay element bounding boxes and indices")),
		),
		s.handleScreenshot,
	)

	s.mcp.AddTool(
		mcp.NewTool("tap",
			mcp.WithDescription("Tap the screen by element index (from get_screen_state) or by explicit coordinates"),
			mcp.WithNumber("index", mcp.Description("Element index to tap")),
			mcp.WithNumber("x", mcp.Description("X coordinate")),
			mcp.WithNumber("y", mcp.Description("Y coordinate")),
		),
		s.handleTap,
	)

	s.mcp.AddTool(
		mcp.NewTool("swipe",
			mcp.WithDescription("Swipe by named direction or explicit coordinates"),
			mcp.WithString("direction", mcp.Description("up, down, left, or right")),
			mcp.WithNumber("x1", mcp.Description("Start X")),
			mcp.WithNumber("y1", mcp.Description("Start Y")),
			mcp.WithNumber("x2", mcp.Description("End X")),
			mcp.WithNumber("y2", mcp.Description("End Y")),
		),
		s.handleSwipe,
	)

	s.mcp.AddTool(
		mcp.NewTool("type",
			mcp.WithDescription("Type text into the focused input field"),
			mcp.WithString("text", mcp.Description("Text to type"), mcp.Required()),
		),
		s.handleType,
	)
}

// taskSummary is the YAML shape returned by execute_task.
type taskSummary struct {
	Success     bool          `yaml:"success"`
	Task        string        `yaml:"task"`
	Steps       []stepSummary `yaml:"steps"`
	TotalTokens int           `yaml:"total_tokens"`
	DurationMS  int64         `yaml:"duration_ms"`
	Error       string        `yaml:"error,omitempty"`
}

type stepSummary struct {
	Number    int    `yaml:"number"`
	Action    string `yaml:"action"`
	Reasoning string `yaml:"reasoning,omitempty"`
	Success   bool   `yaml:"success"`
	Message   string `yaml:"message,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

func (s *Server) handleExecuteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	task := stringParam(params, "task", "")
	if task == "" {
		return mcp.NewToolResultError("task is required"), nil
	}

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	result := s.runner.Execute(ctx, task)

	summary := taskSummary{
		Success:     result.Success,
		Task:        result.Task,
		TotalTokens: result.TotalTokens,
		DurationMS:  result.Duration.Milliseconds(),
		Error:       result.Error,
	}
	for _, step := range result.Steps {
		summary.Steps = append(summary.Steps, stepSummary{
			Number:    step.Number,
			Action:    step.Action,
			Reasoning: step.Reasoning,
			Success:   step.Result.Success,
			Message:   step.Result.Message,
			Error:     step.Result.Error,
		})
	}

	text, err := yaml.Marshal(summary)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !result.Success {
		return mcp.NewToolResultError(string(text)), nil
	}
	return mcp.NewToolResultText(string(text)), nil
}

func (s *Server) handleGetScreenState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	verbose := boolParam(request.GetArguments(), "verbose", false)

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	state, err := s.device.GetScreenState(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if verbose {
		return mcp.NewToolResultText(state.Verbose()), nil
	}
	return mcp.NewToolResultText(state.Compact()), nil
}

func (s *Server) handleScreenshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.screenshots == nil {
		return mcp.NewToolResultError("screenshots disabled"), nil
	}
	annotate := boolParam(request.GetArguments(), "annotate", false)

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	entry, err := s.screenshots.Capture(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path := entry.Path
	if annotate {
		state, err := s.device.GetScreenState(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		annotated := entry.Path + ".annotated.png"
		if err := screenshot.AnnotateFile(entry.Path, annotated, state.Elements); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		path = annotated
	}

	text, _ := yaml.Marshal(map[string]any{"path": path, "timestamp": entry.Timestamp})
	return mcp.NewToolResultText(string(text)), nil
}

func (s *Server) handleTap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if idx, ok := optionalIntParam(params, "index"); ok {
		state, err := s.device.GetScreenState(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if idx < 0 || idx >= len(state.Elements) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid element index: %d", idx)), nil
		}
		el := state.Elements[idx]
		x, y := el.Center()
		return resultToText(s.device.Tap(ctx, x, y)), nil
	}

	x, okX := optionalIntParam(params, "x")
	y, okY := optionalIntParam(params, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("tap requires index or x and y"), nil
	}
	return resultToText(s.device.Tap(ctx, x, y)), nil
}

func (s *Server) handleSwipe(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if dir := stringParam(params, "direction", ""); dir != "" {
		return resultToText(s.device.SwipeDirection(ctx, dir)), nil
	}

	x1, ok1 := optionalIntParam(params, "x1")
	y1, ok2 := optionalIntParam(params, "y1")
	x2, ok3 := optionalIntParam(params, "x2")
	y2, ok4 := optionalIntParam(params, "y2")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return mcp.NewToolResultError("swipe requires direction or x1,y1,x2,y2"), nil
	}
	return resultToText(s.device.Swipe(ctx, x1, y1, x2, y2, 0)), nil
}

func (s *Server) handleType(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := stringParam(request.GetArguments(), "text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	return resultToText(s.device.TypeText(ctx, text)), nil
}

func resultToText(res adb.Result) *mcp.CallToolResult {
	text, err := yaml.Marshal(res)
	if err != nil {
		text = []byte(fmt.Sprintf("success: %v\nerror: %s", res.Success, res.Error))
	}
	if !res.Success {
		return mcp.NewToolResultError(string(text))
	}
	return mcp.NewToolResultText(string(text))
}

func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

func boolParam(params map[string]any, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}

// optionalIntParam accepts JSON numbers, which arrive as float64.
func optionalIntParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
