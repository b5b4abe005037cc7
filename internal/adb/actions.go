package adb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/droidagent/internal/uitree"
)

// Action names reported in results.
const (
	ActionTap        = "tap"
	ActionSwipe      = "swipe"
	ActionType       = "type"
	ActionKey        = "key"
	ActionLaunch     = "launch"
	ActionWait       = "wait"
	ActionScreenshot = "screenshot"
)

// Result reports the outcome of a single device action. Command failures
// and timeouts are captured here; action methods never return errors.
type Result struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func okResult(action, format string, args ...any) Result {
	return Result{Success: true, Action: action, Message: fmt.Sprintf(format, args...)}
}

func failResult(action string, err error) Result {
	return Result{Success: false, Action: action, Error: err.Error()}
}

// Tap taps the screen at the given coordinates.
func (c *Controller) Tap(ctx context.Context, x, y int) Result {
	if _, err := c.shell(ctx, fmt.Sprintf("input tap %d %d", x, y)); err != nil {
		return failResult(ActionTap, err)
	}
	return okResult(ActionTap, "tapped at (%d, %d)", x, y)
}

// TapElement taps the center of a parsed UI element.
func (c *Controller) TapElement(ctx context.Context, el uitree.Element) Result {
	x, y := el.Center()
	res := c.Tap(ctx, x, y)
	if res.Success {
		res.Message = fmt.Sprintf("tapped %q at (%d, %d)", el.DisplayName(), x, y)
	}
	return res
}

// Swipe swipes from (x1,y1) to (x2,y2) over the given duration.
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2 int, duration time.Duration) Result {
	if duration <= 0 {
		duration = 300 * time.Millisecond
	}
	cmd := fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, duration.Milliseconds())
	if _, err := c.shell(ctx, cmd); err != nil {
		return failResult(ActionSwipe, err)
	}
	return okResult(ActionSwipe, "swiped from (%d, %d) to (%d, %d)", x1, y1, x2, y2)
}

// SwipeDirection swipes in a named direction around the screen center.
// Accepted directions: up/down/left/right and their single-letter forms.
func (c *Controller) SwipeDirection(ctx context.Context, direction string) Result {
	cx, cy := c.screenW/2, c.screenH/2
	distance := c.screenH / 4

	var x1, y1, x2, y2 int
	switch strings.ToLower(direction) {
	case "up", "u":
		x1, y1, x2, y2 = cx, cy+distance, cx, cy-distance
	case "down", "d":
		x1, y1, x2, y2 = cx, cy-distance, cx, cy+distance
	case "left", "l":
		x1, y1, x2, y2 = cx+distance, cy, cx-distance, cy
	case "right", "r":
		x1, y1, x2, y2 = cx-distance, cy, cx+distance, cy
	default:
		return failResult(ActionSwipe, fmt.Errorf("unknown swipe direction %q", direction))
	}
	return c.Swipe(ctx, x1, y1, x2, y2, 0)
}

// TypeText types text into the focused input field.
func (c *Controller) TypeText(ctx context.Context, text string) Result {
	if text == "" {
		return failResult(ActionType, fmt.Errorf("no text to type"))
	}
	if _, err := c.shell(ctx, fmt.Sprintf("input text '%s'", escapeInputText(text))); err != nil {
		return failResult(ActionType, err)
	}
	preview := text
	if len(preview) > 20 {
		preview = preview[:20] + "..."
	}
	return okResult(ActionType, "typed: %s", preview)
}

// escapeInputText prepares text for `input text`: spaces become %s and
// quotes are backslash-escaped for the device shell.
func escapeInputText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`"`, `\"`,
		" ", "%s",
	)
	return r.Replace(s)
}

// PressKey sends an Android keycode, e.g. KEYCODE_BACK.
func (c *Controller) PressKey(ctx context.Context, keycode string) Result {
	if _, err := c.shell(ctx, "input keyevent "+keycode); err != nil {
		return failResult(ActionKey, err)
	}
	return okResult(ActionKey, "pressed key %s", keycode)
}

// Back presses the back button.
func (c *Controller) Back(ctx context.Context) Result {
	return c.PressKey(ctx, "KEYCODE_BACK")
}

// Home presses the home button.
func (c *Controller) Home(ctx context.Context) Result {
	return c.PressKey(ctx, "KEYCODE_HOME")
}

// RecentApps opens the recent apps switcher.
func (c *Controller) RecentApps(ctx context.Context) Result {
	return c.PressKey(ctx, "KEYCODE_APP_SWITCH")
}

// LaunchApp launches a package. With an activity name it uses an explicit
// intent; otherwise it fires the launcher intent via monkey.
func (c *Controller) LaunchApp(ctx context.Context, pkg, activity string) Result {
	if pkg == "" {
		return failResult(ActionLaunch, fmt.Errorf("no package name"))
	}
	var cmd string
	if activity != "" {
		cmd = fmt.Sprintf("am start -n %s/%s", pkg, activity)
	} else {
		cmd = fmt.Sprintf("monkey -p %s -c android.intent.category.LAUNCHER 1", pkg)
	}
	if _, err := c.shell(ctx, cmd); err != nil {
		return failResult(ActionLaunch, err)
	}
	return okResult(ActionLaunch, "launched %s", pkg)
}

// Wait pauses for the given duration, honoring cancellation.
func (c *Controller) Wait(ctx context.Context, d time.Duration) Result {
	select {
	case <-time.After(d):
		return okResult(ActionWait, "waited %s", d)
	case <-ctx.Done():
		return failResult(ActionWait, ctx.Err())
	}
}

// Screenshot captures the screen to the device, pulls it to localPath,
// and removes the device copy.
func (c *Controller) Screenshot(ctx context.Context, localPath string) Result {
	devicePath := "/sdcard/droidagent_screen.png"
	if _, err := c.shell(ctx, "screencap -p "+devicePath); err != nil {
		return failResult(ActionScreenshot, err)
	}
	if _, err := c.command(ctx, "pull", devicePath, localPath); err != nil {
		return failResult(ActionScreenshot, err)
	}
	if _, err := c.shell(ctx, "rm "+devicePath); err != nil {
		return failResult(ActionScreenshot, err)
	}
	return okResult(ActionScreenshot, "%s", localPath)
}
