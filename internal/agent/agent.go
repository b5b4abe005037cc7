package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/metalagman/droidagent/internal/adb"
	"github.com/metalagman/droidagent/internal/config"
	"github.com/metalagman/droidagent/internal/events"
	"github.com/metalagman/droidagent/internal/llm"
	"github.com/metalagman/droidagent/internal/uitree"
)

// baselineCharsPerToken is the heuristic used to estimate what the
// verbose screen encoding would have cost in tokens.
const baselineCharsPerToken = 4

// Device is the subset of the adb controller the loop drives.
type Device interface {
	GetScreenState(ctx context.Context) (*adb.ScreenState, error)
	Tap(ctx context.Context, x, y int) adb.Result
	TapElement(ctx context.Context, el uitree.Element) adb.Result
	Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) adb.Result
	SwipeDirection(ctx context.Context, direction string) adb.Result
	TypeText(ctx context.Context, text string) adb.Result
	Back(ctx context.Context) adb.Result
	Home(ctx context.Context) adb.Result
	LaunchApp(ctx context.Context, pkg, activity string) adb.Result
	Wait(ctx context.Context, d time.Duration) adb.Result
}

// Model produces chat completions.
type Model interface {
	Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error)
}

// Agent runs one task at a time through the Plan-Execute-Verify loop.
// An Agent must not be invoked concurrently; callers serialize Execute.
type Agent struct {
	device      Device
	model       Model
	cfg         config.AgentConfig
	broadcaster *events.Broadcaster

	state  State
	memory *screenMemory
}

// New creates an agent. A nil broadcaster disables event emission.
func New(device Device, model Model, cfg config.AgentConfig, broadcaster *events.Broadcaster) *Agent {
	if cfg.MaxSteps < 1 {
		cfg.MaxSteps = 1
	}
	if broadcaster == nil {
		broadcaster = events.NewBroadcaster()
	}
	return &Agent{
		device:      device,
		model:       model,
		cfg:         cfg,
		broadcaster: broadcaster,
		state:       StateIdle,
		memory:      newScreenMemory(cfg.ScreenMemory),
	}
}

// State reports the loop's current phase.
func (a *Agent) State() State { return a.state }

// ScreenHistory returns the remembered screen snapshots, oldest first.
func (a *Agent) ScreenHistory() []*adb.ScreenState { return a.memory.all() }

// Execute runs the task to termination. It never returns an error: the
// outcome, including failures, is carried in the Result. The loop ends
// when the model reports done, the consecutive-failure budget runs out,
// the step budget runs out, or the context is cancelled.
func (a *Agent) Execute(ctx context.Context, task string) *Result {
	start := time.Now()
	result := &Result{TaskID: uuid.NewString(), Task: task}

	defer func() {
		result.Duration = time.Since(start)
		if result.Success {
			a.emit(events.KindTaskCompleted, result.TaskID, map[string]any{
				"steps": result.StepCount(), "tokens": result.TotalTokens,
			})
		} else {
			a.emit(events.KindTaskFailed, result.TaskID, map[string]any{"error": result.Error})
		}
	}()

	a.setState(StatePlanning, result.TaskID)
	a.emit(events.KindTaskStarted, result.TaskID, map[string]any{"task": task})

	screen, err := a.device.GetScreenState(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("read initial screen: %v", err)
		a.setState(StateFailed, result.TaskID)
		return result
	}
	a.rememberScreen(result, screen)

	messages := initialMessages(task, screen, a.cfg.CompactPrompts)
	failures := 0

	for stepNum := 0; stepNum < a.cfg.MaxSteps; stepNum++ {
		if ctx.Err() != nil {
			result.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
			a.setState(StateFailed, result.TaskID)
			break
		}

		stepStart := time.Now()
		a.setState(StatePlanning, result.TaskID)
		a.emit(events.KindStepStarted, result.TaskID, map[string]any{"step": len(result.Steps) + 1})

		resp, err := a.model.Chat(ctx, messages)
		if err != nil {
			result.Error = fmt.Sprintf("model call failed: %v", err)
			a.setState(StateFailed, result.TaskID)
			break
		}
		result.PromptTokens += resp.Usage.PromptTokens
		result.CompletionTokens += resp.Usage.CompletionTokens
		result.TotalTokens += resp.Usage.TotalTokens
		a.emit(events.KindTokensUsed, result.TaskID, map[string]any{
			"prompt": resp.Usage.PromptTokens, "completion": resp.Usage.CompletionTokens,
			"total": result.TotalTokens,
		})

		req, ok := DecodeAction(resp.Content)
		if !ok {
			log.Warn().Str("content", truncate(resp.Content, 120)).Msg("undecodable model output, re-planning")
			a.emit(events.KindError, result.TaskID, map[string]any{"error": "undecodable model output"})
			continue
		}

		step := Step{
			Number:       len(result.Steps) + 1,
			Action:       req.Kind.String(),
			Reasoning:    req.Thought,
			ScreenBefore: screen,
			TokensUsed:   resp.Usage.TotalTokens,
		}

		if req.Kind == ActionDone {
			step.Result = adb.Result{Success: true, Action: adb.ActionWait, Message: "Task completed"}
			step.Duration = time.Since(stepStart)
			result.Steps = append(result.Steps, step)
			result.Success = true
			a.setState(StateCompleted, result.TaskID)
			a.emit(events.KindStepCompleted, result.TaskID, map[string]any{"step": step.Number, "action": "done"})
			break
		}

		if ctx.Err() != nil {
			result.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
			a.setState(StateFailed, result.TaskID)
			break
		}

		a.setState(StateExecuting, result.TaskID)
		actionResult := a.dispatch(ctx, req, screen)
		step.Result = actionResult
		a.emit(events.KindActionExecuted, result.TaskID, map[string]any{
			"action": step.Action, "success": actionResult.Success, "message": actionResult.Message,
		})

		a.setState(StateVerifying, result.TaskID)
		a.settle(ctx)
		if next, err := a.device.GetScreenState(ctx); err != nil {
			// Keep driving with the last good snapshot; a dead bridge
			// will exhaust the failure budget on the next actions.
			log.Warn().Err(err).Msg("screen re-read failed, keeping previous snapshot")
			a.emit(events.KindError, result.TaskID, map[string]any{"error": err.Error()})
		} else {
			screen = next
			a.rememberScreen(result, screen)
		}
		step.ScreenAfter = screen
		step.Duration = time.Since(stepStart)
		result.Steps = append(result.Steps, step)

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: stepFeedback(actionResult, screen, a.cfg.CompactPrompts)},
		)

		a.emit(events.KindStepCompleted, result.TaskID, map[string]any{
			"step": step.Number, "action": step.Action, "success": actionResult.Success,
		})
		a.emit(events.KindProgressUpdate, result.TaskID, map[string]any{
			"step": step.Number, "max_steps": a.cfg.MaxSteps,
		})

		if actionResult.Success {
			failures = 0
			continue
		}
		failures++
		if failures > a.cfg.RetryBudget {
			result.Error = fmt.Sprintf("action failed: %s", actionResult.Error)
			a.setState(StateFailed, result.TaskID)
			break
		}
		log.Warn().Str("error", actionResult.Error).Int("failures", failures).Msg("action failed, retrying")
	}

	if !result.Success && a.state != StateFailed {
		result.Error = "max steps reached without completing task"
		a.setState(StateFailed, result.TaskID)
	}
	result.FinalScreen = screen
	return result
}

// dispatch routes a decoded request to the device. Every malformed or
// unknown request becomes a failed result, never an error.
func (a *Agent) dispatch(ctx context.Context, req ActionRequest, screen *adb.ScreenState) adb.Result {
	p := req.Params
	switch req.Kind {
	case ActionTap:
		if p.ElementIndex != nil {
			idx := *p.ElementIndex
			if screen == nil || idx < 0 || idx >= len(screen.Elements) {
				return failure(adb.ActionTap, "invalid element index: %d", idx)
			}
			return a.device.TapElement(ctx, screen.Elements[idx])
		}
		if p.X != nil && p.Y != nil {
			return a.device.Tap(ctx, *p.X, *p.Y)
		}
		return failure(adb.ActionTap, "missing tap coordinates or element index")

	case ActionSwipe:
		if p.Direction != "" {
			return a.device.SwipeDirection(ctx, p.Direction)
		}
		if p.X1 != nil && p.Y1 != nil && p.X2 != nil && p.Y2 != nil {
			return a.device.Swipe(ctx, *p.X1, *p.Y1, *p.X2, *p.Y2, 0)
		}
		return failure(adb.ActionSwipe, "invalid swipe parameters")

	case ActionType:
		if p.Text == "" {
			return failure(adb.ActionType, "missing text to type")
		}
		return a.device.TypeText(ctx, p.Text)

	case ActionBack:
		return a.device.Back(ctx)

	case ActionHome:
		return a.device.Home(ctx)

	case ActionLaunch:
		if p.Package == "" {
			return failure(adb.ActionLaunch, "missing package name")
		}
		return a.device.LaunchApp(ctx, p.Package, "")

	case ActionWait:
		seconds := p.Seconds
		if seconds <= 0 {
			seconds = 1
		}
		return a.device.Wait(ctx, time.Duration(seconds*float64(time.Second)))

	case ActionDone:
		// handled by the loop before dispatch
		return failure(adb.ActionWait, "done is not dispatchable")

	default:
		return failure(adb.ActionTap, "unknown action")
	}
}

func failure(action, format string, args ...any) adb.Result {
	return adb.Result{Success: false, Action: action, Error: fmt.Sprintf(format, args...)}
}

func (a *Agent) settle(ctx context.Context) {
	if a.cfg.SettleDelay <= 0 {
		return
	}
	select {
	case <-time.After(a.cfg.SettleDelay):
	case <-ctx.Done():
	}
}

func (a *Agent) rememberScreen(result *Result, screen *adb.ScreenState) {
	a.memory.add(screen)
	result.BaselineTokens += len(screen.Verbose()) / baselineCharsPerToken
	a.emit(events.KindScreenUpdated, result.TaskID, map[string]any{
		"package": screen.Package, "elements": len(screen.Elements),
	})
}

func (a *Agent) setState(s State, taskID string) {
	if a.state == s {
		return
	}
	a.state = s
	a.emit(events.KindStateChanged, taskID, map[string]any{"state": s.String()})
}

func (a *Agent) emit(kind events.Kind, taskID string, data map[string]any) {
	a.broadcaster.Publish(events.New(kind, taskID, data))
}
