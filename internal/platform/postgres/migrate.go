package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsDir is the directory inside the embedded filesystem holding the migrations.
const MigrationsDir = "migrations"

// Migrations returns the embedded goose migrations.
func Migrations() embed.FS {
	return migrationsFS
}

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf forwards goose progress messages at info level.
func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level. It does not exit; goose returns the error to the caller.
func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Migrate runs a goose command ("up", "down", "status", "version", "reset")
// against db using the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger, command string, args ...string) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "migrations", "command", command)

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&slogGooseLogger{logger: log})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	log.Info("running migrations")
	if err := goose.RunContext(ctx, command, db, MigrationsDir, args...); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		return fmt.Errorf("goose %s: %w", command, err)
	}
	log.Info("migrations finished")
	return nil
}
