package agent

import (
	"fmt"

	"github.com/metalagman/droidagent/internal/adb"
	"github.com/metalagman/droidagent/internal/llm"
)

const systemPrompt = `You are a mobile automation agent controlling an Android device.

Your capabilities:
- Analyze screen states (UI elements, layout, current app)
- Plan action sequences to complete user tasks
- Execute actions: tap, swipe, type, back, home, launch
- Verify results and adapt if needed

Response format (JSON):
{
    "thought": "Brief reasoning about current state and next action",
    "action": "tap|swipe|type|back|home|launch|wait|done",
    "params": {
        // For tap: {"element_index": 0} or {"x": 100, "y": 200}
        // For swipe: {"direction": "up|down|left|right"} or {"x1":..., "y1":..., "x2":..., "y2":...}
        // For type: {"text": "text to type"}
        // For launch: {"package": "com.android.chrome"}
        // For wait: {"seconds": 1.0}
        // For done: {}
    },
    "confidence": 0.0-1.0
}

Rules:
- Use element_index when possible (more reliable than coordinates)
- Always verify action success before proceeding
- If stuck, try alternative approaches
- Report "done" when task is complete
- Keep thoughts concise`

const compactSystemPrompt = `MA:Android. Acts:tap/swipe/type/back/home/launch/wait/done.
JSON:{t:"thought",a:"action",p:{params},c:0.0-1.0}
tap:{ei:N}|{x,y}. swipe:{d:"u/d/l/r"}. type:{txt:""}. launch:{pkg:""}. wait:{s:N}. done:{}
Verify after act. Concise.`

// initialMessages seeds the conversation with the system instructions,
// the task, and the starting screen encoding.
func initialMessages(task string, screen *adb.ScreenState, compact bool) []llm.Message {
	system := systemPrompt
	if compact {
		system = compactSystemPrompt
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Task: %s\n\nCurrent screen:\n%s", task, encodeScreen(screen, compact))},
	}
}

// stepFeedback reports the action outcome and the new screen back to
// the model.
func stepFeedback(result adb.Result, screen *adb.ScreenState, compact bool) string {
	status := "OK"
	if !result.Success {
		status = "FAIL:" + result.Error
	}
	if compact {
		return fmt.Sprintf("R:%s\n%s", status, encodeScreen(screen, true))
	}
	return fmt.Sprintf("Action result: %s\n\nNew screen state:\n%s", status, encodeScreen(screen, false))
}

func encodeScreen(screen *adb.ScreenState, compact bool) string {
	if screen == nil {
		return ""
	}
	if compact {
		return screen.Compact()
	}
	return screen.Verbose()
}
