// Package agent runs natural-language tasks on a device through a
// bounded Plan-Execute-Verify loop: ask the model for the next action,
// dispatch it, let the UI settle, re-read the screen, repeat.
package agent

import (
	"time"

	"github.com/metalagman/droidagent/internal/adb"
)

// State is the loop's current phase.
type State int

const (
	StateIdle State = iota
	StatePlanning
	StateExecuting
	StateVerifying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlanning:
		return "planning"
	case StateExecuting:
		return "executing"
	case StateVerifying:
		return "verifying"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Step records one completed plan/execute/verify iteration.
type Step struct {
	Number       int             `json:"step_number"`
	Action       string          `json:"action"`
	Reasoning    string          `json:"reasoning"`
	Result       adb.Result      `json:"result"`
	ScreenBefore *adb.ScreenState `json:"-"`
	ScreenAfter  *adb.ScreenState `json:"-"`
	TokensUsed   int             `json:"tokens_used"`
	Duration     time.Duration   `json:"duration_ms"`
}

// Result is the outcome of one task execution. Every exit path
// populates FinalScreen and Duration.
type Result struct {
	Success        bool             `json:"success"`
	TaskID         string           `json:"task_id"`
	Task           string           `json:"task"`
	Steps          []Step           `json:"steps"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	BaselineTokens   int            `json:"baseline_tokens"`
	Duration       time.Duration    `json:"total_duration_ms"`
	Error          string           `json:"error,omitempty"`
	FinalScreen    *adb.ScreenState `json:"-"`
}

// StepCount returns the number of completed steps.
func (r *Result) StepCount() int { return len(r.Steps) }
