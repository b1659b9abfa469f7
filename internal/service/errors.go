// Package service owns the per-domain concept sessions and exposes the
// engine's operations to the transport layer.
package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-concepts/internal/hierarchy"
)

// Common service errors - sentinel errors used across service implementations.
// The API layer maps these, and the hierarchy sentinels they sit beside, to
// HTTP status codes.
var (
	// ErrServiceClosed is returned by every operation after Close.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrServiceClosed = errors.New("concept service closed")

	// ErrInvalidDomain indicates a request without a domain id.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidDomain = errors.New("domain id is required")
)

// ConceptServiceError wraps unexpected errors from the concept service with context.
type ConceptServiceError struct {
	// Operation is the operation that failed (e.g., "load_session", "layout")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ConceptServiceError.
func (e *ConceptServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("concept service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("concept service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConceptServiceError) Unwrap() error {
	return e.Err
}

// NewConceptServiceError wraps err unless it already carries a known
// sentinel, in which case it is returned unchanged.
func NewConceptServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	var herr *hierarchy.Error
	if errors.As(err, &herr) ||
		errors.Is(err, ErrServiceClosed) ||
		errors.Is(err, ErrInvalidDomain) {
		return err
	}
	return &ConceptServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
