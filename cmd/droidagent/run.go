package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/metalagman/droidagent/internal/logging"
)

const defaultRound = 10 * time.Millisecond

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "run <task>",
		Short:        "Execute a natural-language task on the connected device",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := buildStack(ctx)
			if err != nil {
				return err
			}
			defer s.cleanup()

			log.Info().Str("task", task).Str("serial", s.controller.Serial()).Msg("starting task")
			result := s.agent.Execute(ctx, task)

			if s.collector != nil {
				if _, err := s.collector.Record(cmd.Context(), result); err != nil {
					log.Warn().Err(err).Msg("record metrics")
				}
			}

			for _, step := range result.Steps {
				status := "ok"
				if !step.Result.Success {
					status = "failed: " + step.Result.Error
				}
				fmt.Printf("%2d. %-8s %s (%s)\n", step.Number, step.Action, step.Reasoning, status)
			}
			fmt.Printf("\nsteps=%d tokens=%d duration=%s\n",
				result.StepCount(), result.TotalTokens, result.Duration.Round(defaultRound))

			if logging.DebugEnabled() && result.FinalScreen != nil {
				log.Debug().Msg("final screen:\n" + result.FinalScreen.Compact())
			}

			if !result.Success {
				return fmt.Errorf("task failed: %s", result.Error)
			}
			fmt.Println("task completed")
			return nil
		},
	}
	return cmd
}
