package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Inspect recorded task metrics",
	}
	cmd.AddCommand(metricsSummaryCmd())
	cmd.AddCommand(metricsExportCmd())
	return cmd
}

func metricsSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "summary",
		Short:        "Print aggregate statistics over all recorded tasks",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, cleanup, err := openCollector()
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := collector.Summary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("tasks:            %d\n", s.Tasks)
			fmt.Printf("success rate:     %.1f%%\n", s.SuccessRate)
			fmt.Printf("total tokens:     %d\n", s.TotalTokens)
			fmt.Printf("total cost:       $%.4f\n", s.TotalCostUSD)
			fmt.Printf("avg duration:     %s\n", s.AverageDuration.Round(defaultRound))
			fmt.Printf("avg token saving: %.1f%%\n", s.AverageReduction)
			return nil
		},
	}
}

func metricsExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:          "export",
		Short:        "Export all task records as CSV",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			collector, cleanup, err := openCollector()
			if err != nil {
				return err
			}
			defer cleanup()

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return collector.ExportCSV(cmd.Context(), w)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}
