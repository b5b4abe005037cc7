package adb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/droidagent/internal/uitree"
)

const deviceDumpPath = "/sdcard/droidagent_ui.xml"

// ScreenState is a snapshot of the device UI at one point in time.
type ScreenState struct {
	Package        string           `json:"package"`
	Activity       string           `json:"activity"`
	Elements       []uitree.Element `json:"elements"`
	ScreenshotPath string           `json:"screenshot_path,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// mResumedActivity line looks like:
//
//	mResumedActivity: ActivityRecord{... u0 com.android.settings/.Settings t12}
var resumedActivityPattern = regexp.MustCompile(`mResumedActivity.*\su\d+\s+([\w.]+)/(\S+?)[\s}]`)

// GetScreenState dumps the UI hierarchy and the foreground activity and
// returns the parsed state. A failed activity probe leaves the package
// and activity empty rather than failing the snapshot.
func (c *Controller) GetScreenState(ctx context.Context) (*ScreenState, error) {
	state := &ScreenState{Timestamp: time.Now()}

	if out, err := c.shell(ctx, "dumpsys activity activities"); err != nil {
		log.Warn().Err(err).Msg("foreground activity probe failed")
	} else if m := resumedActivityPattern.FindStringSubmatch(string(out)); m != nil {
		state.Package = m[1]
		state.Activity = m[2]
		if state.Activity[0] == '.' {
			state.Activity = state.Package + state.Activity
		}
	}

	if _, err := c.shell(ctx, "uiautomator dump "+deviceDumpPath); err != nil {
		return nil, fmt.Errorf("dump ui hierarchy: %w", err)
	}
	raw, err := c.shell(ctx, "cat "+deviceDumpPath)
	if err != nil {
		return nil, fmt.Errorf("read ui hierarchy: %w", err)
	}

	els, err := c.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse ui hierarchy: %w", err)
	}
	state.Elements = els
	return state, nil
}

// CaptureScreenState is GetScreenState plus a screenshot written to
// localPath. A failed capture leaves ScreenshotPath empty; the snapshot
// itself still succeeds.
func (c *Controller) CaptureScreenState(ctx context.Context, localPath string) (*ScreenState, error) {
	state, err := c.GetScreenState(ctx)
	if err != nil {
		return nil, err
	}
	if res := c.Screenshot(ctx, localPath); res.Success {
		state.ScreenshotPath = localPath
	} else {
		log.Warn().Str("error", res.Error).Msg("screenshot capture failed")
	}
	return state, nil
}

// Compact renders the state in the token-efficient prompt format.
func (s *ScreenState) Compact() string {
	return uitree.CompactEncode(s.Elements, s.Package, s.Activity)
}

// Verbose renders the state with full element attributes.
func (s *ScreenState) Verbose() string {
	return uitree.VerboseEncode(s.Elements, s.Package, s.Activity)
}
