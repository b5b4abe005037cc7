package adb

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/droidagent/internal/uitree"
)

const (
	defaultTimeout = 30 * time.Second

	// Fallback screen geometry when the size probe fails.
	fallbackScreenWidth  = 1080
	fallbackScreenHeight = 1920
)

// Options configures a Controller.
type Options struct {
	ADBPath string
	Serial  string
	Timeout time.Duration
}

// Controller executes device commands over the adb bridge. A Controller
// is not safe for concurrent use by two tasks.
type Controller struct {
	opts    Options
	runner  Runner
	parser  *uitree.Parser
	screenW int
	screenH int
}

// NewController creates a controller. A nil runner uses os/exec.
func NewController(opts Options, runner Runner) *Controller {
	if opts.ADBPath == "" {
		opts.ADBPath = "adb"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if runner == nil {
		runner = NewExecRunner()
	}
	return &Controller{
		opts:    opts,
		runner:  runner,
		parser:  uitree.NewParser(0, 0),
		screenW: fallbackScreenWidth,
		screenH: fallbackScreenHeight,
	}
}

// Connect discovers attached devices and selects the configured serial,
// or the first device found when no serial is configured. It returns an
// error when no usable device exists.
func (c *Controller) Connect(ctx context.Context) error {
	out, err := c.command(ctx, "devices")
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	var serials []string
	for _, line := range strings.Split(string(out), "\n")[1:] {
		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) == 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	if len(serials) == 0 {
		return fmt.Errorf("no devices attached")
	}

	if c.opts.Serial != "" {
		found := false
		for _, s := range serials {
			if s == c.opts.Serial {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("device %s not attached", c.opts.Serial)
		}
	} else {
		c.opts.Serial = serials[0]
		log.Info().Str("serial", c.opts.Serial).Msg("using first attached device")
	}

	c.probeScreenSize(ctx)
	return nil
}

// Serial returns the selected device serial, empty before Connect.
func (c *Controller) Serial() string { return c.opts.Serial }

// ScreenSize returns the probed physical screen dimensions.
func (c *Controller) ScreenSize() (int, int) { return c.screenW, c.screenH }

var screenSizePattern = regexp.MustCompile(`(\d+)x(\d+)`)

func (c *Controller) probeScreenSize(ctx context.Context) {
	out, err := c.shell(ctx, "wm size")
	if err != nil {
		log.Warn().Err(err).Msg("screen size probe failed, using fallback geometry")
		return
	}
	m := screenSizePattern.FindStringSubmatch(string(out))
	if m == nil {
		return
	}
	var w, h int
	if _, err := fmt.Sscanf(m[0], "%dx%d", &w, &h); err == nil && w > 0 && h > 0 {
		c.screenW, c.screenH = w, h
	}
}

// command runs an adb command for the selected device under the
// configured timeout.
func (c *Controller) command(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	full := make([]string, 0, len(args)+2)
	if c.opts.Serial != "" {
		full = append(full, "-s", c.opts.Serial)
	}
	full = append(full, args...)
	return c.runner.Run(ctx, c.opts.ADBPath, full...)
}

// shell runs a command inside the device shell.
func (c *Controller) shell(ctx context.Context, cmd string) ([]byte, error) {
	return c.command(ctx, "shell", cmd)
}
