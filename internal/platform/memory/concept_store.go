package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// ConceptStore keeps concepts in memory.
type ConceptStore struct {
	mu       sync.RWMutex
	concepts map[uuid.UUID]*domain.Concept
	logger   *slog.Logger
	now      func() time.Time
}

// Compile-time check to ensure ConceptStore implements store.ConceptStore.
var _ store.ConceptStore = (*ConceptStore)(nil)

// NewConceptStore creates an empty store seeded with the given concepts.
func NewConceptStore(logger *slog.Logger, seed ...*domain.Concept) *ConceptStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConceptStore{
		concepts: make(map[uuid.UUID]*domain.Concept, len(seed)),
		logger:   logger.With("component", "memory_concept_store"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, c := range seed {
		s.concepts[c.ID] = c.Clone()
	}
	return s
}

// ListByDomain implements store.ConceptStore.
// Results are ordered by creation time, then id.
func (s *ConceptStore) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Concept, 0)
	for _, c := range s.concepts {
		if c.DomainID == domainID {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *domain.Concept) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	logger.FromContextOrDefault(ctx, s.logger).Debug("listed concepts",
		"domain_id", domainID, "count", len(out))
	return out, nil
}

// Insert implements store.ConceptStore.
func (s *ConceptStore) Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := concept.Validate(); err != nil {
		return nil, store.NewStoreError("concept", "insert", "validation failed",
			fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.concepts[concept.ID]; exists {
		return nil, store.ErrConceptExists
	}
	if err := s.checkParent(concept.ID, concept.DomainID, concept.ParentID); err != nil {
		return nil, store.NewStoreError("concept", "insert", "invalid parent", err)
	}

	stored := concept.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.concepts[stored.ID] = stored

	logger.FromContextOrDefault(ctx, s.logger).Debug("inserted concept", "concept_id", stored.ID)
	return stored.Clone(), nil
}

// Update implements store.ConceptStore.
func (s *ConceptStore) Update(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.concepts[id]
	if !ok {
		return nil, store.ErrConceptNotFound
	}

	next := current.Clone()
	next.Apply(update)
	next.UpdatedAt = s.now()

	if err := next.Validate(); err != nil {
		return nil, store.NewStoreError("concept", "update", "validation failed",
			fmt.Errorf("%w: %w", store.ErrInvalidEntity, err))
	}
	if update.ParentID != nil {
		if err := s.checkParent(id, next.DomainID, next.ParentID); err != nil {
			return nil, store.NewStoreError("concept", "update", "invalid parent", err)
		}
	}

	s.concepts[id] = next
	return next.Clone(), nil
}

// Delete implements store.ConceptStore.
func (s *ConceptStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.concepts[id]; !ok {
		return store.ErrConceptNotFound
	}
	for _, c := range s.concepts {
		if c.ParentID != nil && *c.ParentID == id {
			return store.NewStoreError("concept", "delete", "concept is referenced as a parent",
				store.ErrInvalidEntity)
		}
	}

	delete(s.concepts, id)
	return nil
}

// Get returns a copy of a stored concept. It is not part of store.ConceptStore.
func (s *ConceptStore) Get(id uuid.UUID) (*domain.Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.concepts[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// checkParent mirrors the composite foreign key (parent_concept_id, domain_id).
// Callers hold the write lock.
func (s *ConceptStore) checkParent(id, domainID uuid.UUID, parentID *uuid.UUID) error {
	if parentID == nil {
		return nil
	}
	parent, ok := s.concepts[*parentID]
	if !ok {
		return fmt.Errorf("%w: parent %s does not exist", store.ErrInvalidEntity, *parentID)
	}
	if parent.DomainID != domainID {
		return fmt.Errorf("%w: parent %s belongs to another domain", store.ErrInvalidEntity, *parentID)
	}
	for cur := parent; cur != nil && cur.ParentID != nil; cur = s.concepts[*cur.ParentID] {
		if *cur.ParentID == id || cur.ID == id {
			return fmt.Errorf("%w: parent %s descends from %s", store.ErrInvalidEntity, *parentID, id)
		}
	}
	return nil
}
