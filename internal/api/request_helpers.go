package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/api/shared"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/redact"
	"github.com/phrazzld/scry-concepts/internal/service"
)

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%s is required: %w", paramName, domain.ErrInvalidID)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s has invalid format: %w", paramName, domain.ErrInvalidID)
	}
	return id, nil
}

// getQueryUUID parses an optional UUID query parameter; absent means nil.
func getQueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s has invalid format: %w", name, domain.ErrInvalidID)
	}
	return &id, nil
}

// handleDomainID extracts the domain id path parameter, writing a 400 on failure.
func handleDomainID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	domainID, err := getPathUUID(r, "domainID")
	if err != nil {
		log.Warn("invalid domain ID", slog.String("value", chi.URLParam(r, "domainID")))
		HandleAPIError(w, r, errors.Join(service.ErrInvalidDomain, err), "")
		return uuid.Nil, false
	}
	return domainID, true
}

// handleDomainAndConceptID extracts both path ids, writing a 400 on failure.
func handleDomainAndConceptID(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (uuid.UUID, uuid.UUID, bool) {
	domainID, ok := handleDomainID(w, r, log)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	conceptID, err := getPathUUID(r, "conceptID")
	if err != nil {
		log.Warn("invalid concept ID", slog.String("value", chi.URLParam(r, "conceptID")))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, uuid.Nil, false
	}
	return domainID, conceptID, true
}

// decodeAndValidate decodes the JSON body into req and validates it. It writes
// a 400 response and returns false when either step fails. An empty body is
// accepted when allowEmpty is set.
func decodeAndValidate(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
	req interface{},
	allowEmpty bool,
) bool {
	if err := shared.DecodeJSON(r, req); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			log.Warn("invalid request format", slog.String("error", redact.Error(err)))
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return false
		}
	}
	if err := shared.ValidateRequest(req); err != nil {
		log.Warn("request validation failed", slog.String("error", redact.Error(err)))
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
