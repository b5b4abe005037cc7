// Package config provides configuration loading and management for droidagent.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Model   ModelConfig   `json:"model"   mapstructure:"model"`
	Device  DeviceConfig  `json:"device"  mapstructure:"device"`
	Agent   AgentConfig   `json:"agent"   mapstructure:"agent"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Debug   bool          `json:"debug,omitempty" mapstructure:"debug"`
}

// ModelConfig describes the chat-completion endpoint.
type ModelConfig struct {
	BaseURL     string        `json:"base_url"              mapstructure:"base_url"`
	APIKey      string        `json:"api_key,omitempty"     mapstructure:"api_key"`
	APIKeyEnv   string        `json:"api_key_env,omitempty" mapstructure:"api_key_env"`
	Name        string        `json:"name"                  mapstructure:"name"`
	Temperature float64       `json:"temperature"           mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens"            mapstructure:"max_tokens"`
	Timeout     time.Duration `json:"timeout"               mapstructure:"timeout"`
	MaxRetries  int           `json:"max_retries"           mapstructure:"max_retries"`
}

// DeviceConfig describes the ADB bridge.
type DeviceConfig struct {
	ADBPath       string        `json:"adb_path"          mapstructure:"adb_path"`
	Serial        string        `json:"serial,omitempty"  mapstructure:"serial"`
	Timeout       time.Duration `json:"timeout"           mapstructure:"timeout"`
	ScreenshotDir string        `json:"screenshot_dir"    mapstructure:"screenshot_dir"`
}

// AgentConfig defines task execution budgets and behavior.
//
// RetryBudget is the single failure budget for a task: consecutive failed
// device actions count against it and a successful action resets the
// counter. Malformed model output never counts here; it only consumes a
// step from MaxSteps.
type AgentConfig struct {
	MaxSteps       int           `json:"max_steps"        mapstructure:"max_steps"`
	RetryBudget    int           `json:"retry_budget"     mapstructure:"retry_budget"`
	SettleDelay    time.Duration `json:"settle_delay"     mapstructure:"settle_delay"`
	ScreenMemory   int           `json:"screen_memory"    mapstructure:"screen_memory"`
	CompactPrompts bool          `json:"compact_prompts"  mapstructure:"compact_prompts"`
	Screenshots    bool          `json:"screenshots"      mapstructure:"screenshots"`
}

// MetricsConfig controls the optional metrics store.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"        mapstructure:"enabled"`
	DBPath  string `json:"db_path"        mapstructure:"db_path"`
	// BaselineCharsPerToken is the divisor for the verbose-encoding
	// baseline token estimate.
	BaselineCharsPerToken int `json:"baseline_chars_per_token,omitempty" mapstructure:"baseline_chars_per_token"`
}

// Default returns a configuration with working defaults for everything
// except credentials.
func Default() Config {
	return Config{
		Model: ModelConfig{
			BaseURL:     "https://api.ollama.ai",
			APIKeyEnv:   "OLLAMA_API_KEY",
			Name:        "qwen3-coder:480b",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     120 * time.Second,
			MaxRetries:  3,
		},
		Device: DeviceConfig{
			ADBPath:       "adb",
			Timeout:       30 * time.Second,
			ScreenshotDir: "/tmp/droidagent/screenshots",
		},
		Agent: AgentConfig{
			MaxSteps:       10,
			RetryBudget:    3,
			SettleDelay:    500 * time.Millisecond,
			ScreenMemory:   5,
			CompactPrompts: true,
		},
		Metrics: MetricsConfig{
			Enabled:               false,
			DBPath:                ".droidagent/metrics.db",
			BaselineCharsPerToken: 4,
		},
	}
}
