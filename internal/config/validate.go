package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// ValidateSettings checks the raw file contents against the embedded
// JSON schema before decoding, so typos surface with their config path
// instead of as zero values later.
func ValidateSettings(settings map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("invalid config file: %s", strings.Join(errs, "; "))
}

// Validate checks resolved values that the schema cannot express and
// returns every problem found. It runs before any device or model
// interaction; a non-empty result means execution must not start.
func (c Config) Validate() []string {
	var errs []string

	if strings.TrimSpace(c.Model.BaseURL) == "" {
		errs = append(errs, "model.base_url is required")
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		errs = append(errs, "model.name is required")
	}
	if c.Model.APIKey == "" && c.Model.APIKeyEnv == "" {
		errs = append(errs, "model.api_key or model.api_key_env is required")
	}
	if c.Model.MaxRetries < 0 {
		errs = append(errs, "model.max_retries cannot be negative")
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, "agent.max_steps must be at least 1")
	}
	if c.Agent.RetryBudget < 0 {
		errs = append(errs, "agent.retry_budget cannot be negative")
	}
	if c.Agent.ScreenMemory < 1 {
		errs = append(errs, "agent.screen_memory must be at least 1")
	}
	if strings.TrimSpace(c.Device.ADBPath) == "" {
		errs = append(errs, "device.adb_path is required")
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.DBPath) == "" {
		errs = append(errs, "metrics.db_path is required when metrics are enabled")
	}

	return errs
}
