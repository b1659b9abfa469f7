package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/api/shared"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
)

// DefaultNotificationLimit is used when the limit query parameter is absent.
const DefaultNotificationLimit = 20

// NotificationSource returns the recent notifications of a domain.
type NotificationSource interface {
	Recent(domainID uuid.UUID, limit int) []events.Notification
	Clear(domainID uuid.UUID)
}

// NotificationHandler serves the notification feed that clients poll to show
// operation outcomes.
type NotificationHandler struct {
	source NotificationSource
	logger *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(source NotificationSource, logger *slog.Logger) *NotificationHandler {
	if source == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("notification source cannot be nil for NotificationHandler")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		source: source,
		logger: logger.With(slog.String("component", "notification_handler")),
	}
}

// Routes returns the handler's routes, relative to the API prefix.
func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/domains/{domainID}/notifications", h.ListNotifications)
	r.Delete("/domains/{domainID}/notifications", h.ClearNotifications)
	return r
}

// ListNotifications handles GET /domains/{domainID}/notifications?limit=N.
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}

	limit := DefaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit: must be between 1 and 200")
			return
		}
		limit = n
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.source.Recent(domainID, limit))
}

// ClearNotifications handles DELETE /domains/{domainID}/notifications.
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return
	}
	h.source.Clear(domainID)
	w.WriteHeader(http.StatusNoContent)
}
