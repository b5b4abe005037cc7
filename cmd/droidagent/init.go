package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultConfigYAML = `# droidagent configuration
model:
  base_url: https://api.ollama.ai
  # credential is read from this environment variable, never stored here
  api_key_env: OLLAMA_API_KEY
  name: qwen3-coder:480b
  temperature: 0.7
  max_tokens: 4096
  timeout: 120s
  max_retries: 3

device:
  adb_path: adb
  # serial: emulator-5554
  timeout: 30s
  screenshot_dir: /tmp/droidagent/screenshots

agent:
  max_steps: 10
  retry_budget: 3
  settle_delay: 500ms
  screen_memory: 5
  compact_prompts: true
  screenshots: false

metrics:
  enabled: false
  db_path: .droidagent/metrics.db
  baseline_chars_per_token: 4
`

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "init",
		Short:        "Write a default configuration file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			log.Info().Str("path", path).Msg("config written")
			return nil
		},
	}
}
