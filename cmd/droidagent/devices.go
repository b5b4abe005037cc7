package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metalagman/droidagent/internal/adb"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "devices",
		Short:        "Show the selected device and its screen geometry",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			controller := adb.NewController(adb.Options{
				ADBPath: cfg.Device.ADBPath,
				Serial:  cfg.Device.Serial,
				Timeout: cfg.Device.Timeout,
			}, nil)
			if err := controller.Connect(cmd.Context()); err != nil {
				return err
			}

			w, h := controller.ScreenSize()
			fmt.Printf("serial: %s\nscreen: %dx%d\n", controller.Serial(), w, h)
			return nil
		},
	}
}
