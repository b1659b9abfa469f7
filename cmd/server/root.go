package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/scry-concepts/internal/config"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/spf13/cobra"
)

// cliState carries what the root command's PersistentPreRunE prepares for
// its subcommands.
type cliState struct {
	configPath string
	config     *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:           "concepts",
		Short:         "Concept hierarchy and mind-map layout server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.init(cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVarP(&state.configPath, "config", "c", "",
		"path to a config file (defaults to ./config.yaml when present)")

	root.AddCommand(newServeCmd(state), newMigrateCmd(state))
	return root
}

// init loads configuration and sets up structured logging.
func (s *cliState) init(out io.Writer) error {
	var (
		cfg *config.Config
		err error
	)
	if s.configPath != "" {
		cfg, err = config.LoadFile(s.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel, Output: out})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"driver", cfg.Database.Driver)

	s.config = cfg
	s.logger = l
	return nil
}
