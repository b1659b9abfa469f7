package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-concepts/internal/api/shared"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/layout"
	"github.com/phrazzld/scry-concepts/internal/service"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error kind. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidDomain),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrServiceClosed),
		errors.Is(err, layout.ErrClosed):
		return http.StatusServiceUnavailable
	}

	switch hierarchy.KindOf(err) {
	case hierarchy.ErrNotFound:
		return http.StatusNotFound
	case hierarchy.ErrCycleDetected,
		hierarchy.ErrHasChildren,
		hierarchy.ErrInvalidTransition,
		hierarchy.ErrPartialOrderFailure:
		return http.StatusConflict
	case hierarchy.ErrValidation:
		return http.StatusUnprocessableEntity
	case hierarchy.ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	}

	switch {
	case store.IsNotFoundError(err):
		return http.StatusNotFound
	case store.IsDuplicateError(err):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error kind.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrInvalidDomain):
		return "Invalid domain ID"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid concept ID"
	case errors.Is(err, service.ErrServiceClosed),
		errors.Is(err, layout.ErrClosed):
		return "Service is shutting down"
	}

	switch hierarchy.KindOf(err) {
	case hierarchy.ErrNotFound:
		return "Concept not found"
	case hierarchy.ErrCycleDetected:
		return "Cannot move a concept under itself or one of its descendants"
	case hierarchy.ErrHasChildren:
		return "Cannot delete a concept that has child concepts"
	case hierarchy.ErrInvalidTransition:
		return "Invalid status transition"
	case hierarchy.ErrPartialOrderFailure:
		return "Concept order was only partly saved; refresh and try again"
	case hierarchy.ErrValidation:
		return validationMessage(err)
	case hierarchy.ErrStoreUnavailable:
		return "Concept store unavailable"
	}

	switch {
	case store.IsNotFoundError(err):
		return "Concept not found"
	case store.IsDuplicateError(err):
		return "Concept already exists"
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return validationMessage(err)
	case errors.Is(err, store.ErrUnavailable):
		return "Concept store unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// validationMessage names the broken rule when it is one of the known
// concept invariants.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConceptNameEmpty):
		return "Concept name cannot be empty"
	case errors.Is(err, domain.ErrConceptStatusInvalid):
		return "Invalid concept status"
	case errors.Is(err, domain.ErrConceptSourceInvalid):
		return "Invalid concept source"
	case errors.Is(err, domain.ErrConceptDifficultyInvalid):
		return "Difficulty level cannot be negative"
	case errors.Is(err, domain.ErrConceptSelfParent):
		return "A concept cannot be its own parent"
	case errors.Is(err, domain.ErrInvalidPosition):
		return "Invalid layout position"
	default:
		return "Invalid concept data"
	}
}

// HandleAPIError writes the error response for err. defaultMessage replaces
// the generic message of unexpected (500) errors when set.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMessage != "" {
		message = defaultMessage
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns a request validation failure into a
// user-friendly message naming the first invalid field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gte":
		return "must not be negative"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
