package main

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-concepts/internal/config"
	"github.com/phrazzld/scry-concepts/internal/platform/postgres"
	"github.com/spf13/cobra"
)

// errMigrateDriver is returned when migrations are requested for a store
// that does not own its schema.
var errMigrateDriver = errors.New("migrations require the postgres driver")

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <command> [args...]",
		Short: "Run database migrations (up, down, status, version, redo, reset, up-to, down-to)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if state.config.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("%w: configured driver is %q", errMigrateDriver, state.config.Database.Driver)
			}

			db, err := openDatabase(cmd.Context(), state.config.Database, state.logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					state.logger.Error("failed to close database connection", "error", closeErr)
				}
			}()

			return postgres.Migrate(cmd.Context(), db, state.logger, args[0], args[1:]...)
		},
	}
}
