package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scry-concepts/internal/api"
	apiMiddleware "github.com/phrazzld/scry-concepts/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	if app.config.Metrics.Enabled {
		r.Use(app.collector.Middleware)
	}

	conceptHandler := api.NewConceptHandler(app.service, app.logger)
	notificationHandler := api.NewNotificationHandler(app.recorder, app.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/domains/{domainID}/notifications", notificationHandler.ListNotifications)
		r.Delete("/domains/{domainID}/notifications", notificationHandler.ClearNotifications)
		r.Mount("/", conceptHandler.Routes())
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	if app.config.Metrics.Enabled {
		r.Method(http.MethodGet, app.config.Metrics.Path, app.collector.Handler())
	}

	return r
}
