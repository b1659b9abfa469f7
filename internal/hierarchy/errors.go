package hierarchy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// Error kinds reported by the hierarchy. Every failure returned from this
// package matches exactly one of them with errors.Is.
var (
	// ErrValidation indicates bad input: an empty name, an unknown status, a
	// parent that cannot hold the concept, or ids that do not form a sibling group.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates an unknown concept id.
	ErrNotFound = errors.New("concept not found")

	// ErrCycleDetected indicates a reparent that would make a concept its own ancestor.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrHasChildren indicates a delete blocked by existing child concepts.
	ErrHasChildren = errors.New("concept has child concepts")

	// ErrInvalidTransition indicates an illegal status change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPartialOrderFailure indicates that a sibling order change was only
	// partly written and could not be rolled back.
	ErrPartialOrderFailure = errors.New("sibling order partially applied")

	// ErrStoreUnavailable indicates that the concept store failed the write or read.
	ErrStoreUnavailable = errors.New("concept store unavailable")

	// ErrNotLoaded is returned when a mutation runs before Load.
	ErrNotLoaded = errors.New("hierarchy not loaded")
)

// Error describes a failed hierarchy operation.
// Kind is one of the package sentinels; Err is the underlying cause, if any.
type Error struct {
	Op   string
	ID   uuid.UUID
	Kind error
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.ID != uuid.Nil {
		msg = fmt.Sprintf("%s %s", msg, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(op string, id uuid.UUID, kind, err error) *Error {
	return &Error{Op: op, ID: id, Kind: kind, Err: err}
}

// KindOf returns the sentinel that classifies err, or nil when err did not
// originate in this package.
func KindOf(err error) error {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Kind
	}
	for _, kind := range []error{
		ErrValidation, ErrNotFound, ErrCycleDetected, ErrHasChildren,
		ErrInvalidTransition, ErrPartialOrderFailure, ErrStoreUnavailable, ErrNotLoaded,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// storeError classifies a concept store failure.
func storeError(op string, id uuid.UUID, err error) *Error {
	switch {
	case store.IsNotFoundError(err):
		return newError(op, id, ErrNotFound, err)
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, domain.ErrValidation):
		return newError(op, id, ErrValidation, err)
	default:
		return newError(op, id, ErrStoreUnavailable, err)
	}
}
