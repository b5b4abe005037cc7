package main

import (
	"context"
	"fmt"

	"github.com/metalagman/droidagent/internal/adb"
	"github.com/metalagman/droidagent/internal/agent"
	"github.com/metalagman/droidagent/internal/config"
	"github.com/metalagman/droidagent/internal/events"
	"github.com/metalagman/droidagent/internal/llm"
	"github.com/metalagman/droidagent/internal/metrics"
	"github.com/metalagman/droidagent/internal/screenshot"
)

// stack bundles the wired components behind one cleanup.
type stack struct {
	cfg         *config.Config
	controller  *adb.Controller
	model       *llm.Client
	broadcaster *events.Broadcaster
	agent       *agent.Agent
	screenshots *screenshot.Pipeline
	collector   *metrics.Collector
	cleanup     func()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildStack wires the full component graph from configuration and
// connects to the device.
func buildStack(ctx context.Context) (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	controller := adb.NewController(adb.Options{
		ADBPath: cfg.Device.ADBPath,
		Serial:  cfg.Device.Serial,
		Timeout: cfg.Device.Timeout,
	}, nil)
	if err := controller.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect device: %w", err)
	}

	s := &stack{
		cfg:         cfg,
		controller:  controller,
		model:       llm.NewClient(cfg.Model),
		broadcaster: events.NewBroadcaster(),
	}
	s.cleanup = s.model.Close
	s.agent = agent.New(controller, s.model, cfg.Agent, s.broadcaster)

	if cfg.Agent.Screenshots {
		pipeline, err := screenshot.NewPipeline(capturer(controller), cfg.Device.ScreenshotDir, cfg.Agent.ScreenMemory)
		if err != nil {
			return nil, err
		}
		s.screenshots = pipeline
	}

	if cfg.Metrics.Enabled {
		db, err := metrics.Open(cfg.Metrics.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open metrics db: %w", err)
		}
		store := metrics.NewStore(db)
		s.collector = metrics.NewCollector(store, cfg.Model.Name)
		s.cleanup = func() {
			_ = store.Close()
			s.model.Close()
		}
	}
	return s, nil
}

// capturer adapts the controller's result-based screenshot action to
// the pipeline's error-based seam.
func capturer(controller *adb.Controller) screenshot.Capturer {
	return screenshot.CapturerFunc(func(ctx context.Context, path string) error {
		if res := controller.Screenshot(ctx, path); !res.Success {
			return fmt.Errorf("%s", res.Error)
		}
		return nil
	})
}

// openCollector opens the metrics store without touching the device;
// used by the metrics subcommands.
func openCollector() (*metrics.Collector, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Metrics.Enabled {
		return nil, nil, fmt.Errorf("metrics are disabled in configuration")
	}
	db, err := metrics.Open(cfg.Metrics.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open metrics db: %w", err)
	}
	store := metrics.NewStore(db)
	return metrics.NewCollector(store, cfg.Model.Name), func() { _ = store.Close() }, nil
}
