package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
)

// ConceptStore defines the interface for concept data persistence.
// All operations are domain-scoped: a concept's parent must live in the
// same domain, and implementations reject anything else with ErrInvalidEntity.
// Version: 1.0
type ConceptStore interface {
	// ListByDomain retrieves every concept belonging to the domain.
	// Returns an empty slice if the domain has no concepts.
	ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error)

	// Insert saves a new concept and returns the stored record.
	// Returns validation errors from the domain Concept if data is invalid.
	// Returns ErrInvalidEntity if the parent is missing or in another domain.
	Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error)

	// Update applies a partial update and returns the stored record.
	// Returns ErrConceptNotFound if the concept does not exist.
	// Returns ErrInvalidEntity if a new parent is missing or in another domain.
	Update(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error)

	// Delete removes a concept.
	// Returns ErrConceptNotFound if the concept does not exist.
	// Returns ErrInvalidEntity if other concepts still reference it as parent.
	Delete(ctx context.Context, id uuid.UUID) error
}
