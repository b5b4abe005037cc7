package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metalagman/droidagent/internal/screenshot"
)

func screenshotCmd() *cobra.Command {
	var annotate bool
	cmd := &cobra.Command{
		Use:          "screenshot",
		Short:        "Capture a screenshot from the device",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.cleanup()

			pipeline := s.screenshots
			if pipeline == nil {
				pipeline, err = screenshot.NewPipeline(capturer(s.controller), s.cfg.Device.ScreenshotDir, 1)
				if err != nil {
					return err
				}
			}

			entry, err := pipeline.Capture(cmd.Context())
			if err != nil {
				return err
			}

			path := entry.Path
			if annotate {
				state, err := s.controller.GetScreenState(cmd.Context())
				if err != nil {
					return err
				}
				annotated := entry.Path + ".annotated.png"
				if err := screenshot.AnnotateFile(entry.Path, annotated, state.Elements); err != nil {
					return err
				}
				path = annotated
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&annotate, "annotate", false, "overlay element bounding boxes and indices")
	return cmd
}
