package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(cmd.Context(), state.config, state.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.startHTTPServer(cmd.Context(), app.setupRouter())
		},
	}
}
