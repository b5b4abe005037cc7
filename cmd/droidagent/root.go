package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/metalagman/droidagent/internal/logging"
)

var (
	cfgFile string
	debug   bool
	rootCmd = &cobra.Command{
		Use:   "droidagent",
		Short: "droidagent runs natural-language automation tasks on Android devices",
	}
)

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", filepath.Join(".droidagent", "config.yaml"), "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debug {
			logging.Init(true)
			return
		}
		logging.InitWithLevel(os.Getenv("DROIDAGENT_LOG_LEVEL"))
	}
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(devicesCmd())
	rootCmd.AddCommand(screenshotCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(initCmd())
	return rootCmd.Execute()
}
