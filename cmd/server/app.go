package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-concepts/internal/config"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/layout"
	"github.com/phrazzld/scry-concepts/internal/platform/memory"
	"github.com/phrazzld/scry-concepts/internal/platform/metrics"
	"github.com/phrazzld/scry-concepts/internal/platform/postgres"
	"github.com/phrazzld/scry-concepts/internal/platform/resilience"
	"github.com/phrazzld/scry-concepts/internal/platform/supabase"
	"github.com/phrazzld/scry-concepts/internal/service"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// recorderCapacity is the number of notifications kept per domain for the
// notification feed.
const recorderCapacity = 50

// application holds the wired dependencies of the server.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB
	collector *metrics.Collector
	recorder  *events.Recorder
	service   service.ConceptService
}

// newApplication builds the concept store for the configured driver,
// decorates it, and constructs the concept service on top.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:    cfg,
		logger:    logger,
		collector: metrics.NewCollector(),
		recorder:  events.NewRecorder(recorderCapacity),
	}

	st, err := app.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	st = app.decorateStore(st)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLogHandler(logger))
	emitter.RegisterHandler(app.recorder)
	if cfg.Metrics.Enabled {
		emitter.RegisterHandler(app.collector)
	}

	opts := service.Options{
		Layout: layout.Config{
			Origin:          domain.Position{X: cfg.Layout.OriginX, Y: cfg.Layout.OriginY},
			RootRadius:      cfg.Layout.RootRadius,
			InitialRadius:   cfg.Layout.InitialRadius,
			RingStep:        cfg.Layout.RingStep,
			SectorNarrowing: cfg.Layout.SectorNarrowing,
		},
		Debounce:         cfg.Layout.Debounce,
		WriteConcurrency: cfg.Store.WriteConcurrency,
	}
	if cfg.Metrics.Enabled {
		opts.WriteObserver = app.collector.ObservePositionWrite
	}

	svc, err := service.NewConceptService(st, emitter, logger, opts)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("failed to create concept service: %w", err)
	}
	app.service = svc
	return app, nil
}

func (app *application) buildStore(ctx context.Context) (store.ConceptStore, error) {
	dbCfg := app.config.Database
	switch dbCfg.Driver {
	case config.DriverPostgres:
		db, err := openDatabase(ctx, dbCfg, app.logger)
		if err != nil {
			return nil, err
		}
		app.db = db
		return postgres.NewPostgresConceptStore(db, app.logger), nil
	case config.DriverSupabase:
		client, err := supabase.NewClient(dbCfg.SupabaseURL, dbCfg.SupabaseKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create supabase client: %w", err)
		}
		return supabase.NewConceptStore(client, app.logger), nil
	case config.DriverMemory:
		app.logger.Warn("using the in-memory concept store; data will not survive a restart")
		return memory.NewConceptStore(app.logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
}

// decorateStore wraps st in metrics first so that the breaker's rejections
// are not counted as store calls.
func (app *application) decorateStore(st store.ConceptStore) store.ConceptStore {
	if app.config.Metrics.Enabled {
		st = metrics.NewStore(st, app.collector)
	}
	if b := app.config.Store.Breaker; b.Enabled {
		settings := resilience.DefaultSettings()
		settings.MaxRequests = b.MaxRequests
		settings.Interval = b.Interval
		settings.Timeout = b.Timeout
		settings.ConsecutiveFailures = b.FailureThreshold
		st = resilience.NewBreakerStore(st, settings, app.logger)
	}
	return st
}

// cleanup flushes pending layout saves and releases the database pool.
func (app *application) cleanup(ctx context.Context) {
	if app.service != nil {
		if err := app.service.Close(ctx); err != nil {
			app.logger.Error("failed to close concept service", "error", err)
		}
	}
	app.closeDB()
}

func (app *application) closeDB() {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}
	app.db = nil
}
