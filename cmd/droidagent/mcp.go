package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/metalagman/droidagent/internal/mcpserver"
)

func mcpCmd() *cobra.Command {
	var transport string
	var port int
	cmd := &cobra.Command{
		Use:          "mcp",
		Short:        "Serve agent and device tools over the Model Context Protocol",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := buildStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.cleanup()

			server := mcpserver.New(s.agent, s.controller, s.screenshots)
			log.Info().Str("transport", transport).Msg("mcp server starting")
			return server.Serve(mcpserver.Config{Transport: transport, Port: port})
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "transport: stdio or streamable-http")
	cmd.Flags().IntVar(&port, "port", 8766, "port for streamable-http transport")
	return cmd
}
