package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings_Valid(t *testing.T) {
	settings := map[string]any{
		"model": map[string]any{
			"base_url":    "http://localhost:11434",
			"name":        "qwen3-coder:480b",
			"max_retries": 3,
		},
		"agent": map[string]any{
			"max_steps":    5,
			"retry_budget": 2,
		},
	}
	assert.NoError(t, ValidateSettings(settings))
}

func TestValidateSettings_RejectsUnknownKeys(t *testing.T) {
	settings := map[string]any{
		"modle": map[string]any{"name": "typo"},
	}
	err := ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config file")
}

func TestValidateSettings_RejectsBadTypes(t *testing.T) {
	settings := map[string]any{
		"agent": map[string]any{"max_steps": "ten"},
	}
	assert.Error(t, ValidateSettings(settings))
}

func TestConfigValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{}
	cfg.Agent.MaxSteps = 0
	cfg.Agent.RetryBudget = -1

	errs := cfg.Validate()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs, "model.base_url is required")
	assert.Contains(t, errs, "agent.max_steps must be at least 1")
	assert.Contains(t, errs, "agent.retry_budget cannot be negative")
}

func TestConfigValidate_OK(t *testing.T) {
	cfg := Default()
	cfg.Model.APIKey = "test-key"
	assert.Empty(t, cfg.Validate())
}

func TestLoad_FileWithDurations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model:
  base_url: http://localhost:11434
  name: test-model
  api_key: k
  timeout: 60
agent:
  max_steps: 7
  settle_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cfg.Model.Name)
	assert.Equal(t, 60*time.Second, cfg.Model.Timeout)
	assert.Equal(t, 7, cfg.Agent.MaxSteps)
	assert.Equal(t, 250*time.Millisecond, cfg.Agent.SettleDelay)
	// untouched defaults survive
	assert.Equal(t, 3, cfg.Agent.RetryBudget)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OLLAMA_API_KEY", "env-key")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Model.APIKey)
	assert.Equal(t, 10, cfg.Agent.MaxSteps)
}

func TestLoad_InvalidBudgetFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
model:
  api_key: k
agent:
  max_steps: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")
}
