package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// Store is a store.ConceptStore decorator recording operation counts and latency.
type Store struct {
	next      store.ConceptStore
	collector *Collector
}

// Compile-time check to ensure Store implements store.ConceptStore.
var _ store.ConceptStore = (*Store)(nil)

// NewStore wraps next.
func NewStore(next store.ConceptStore, collector *Collector) *Store {
	return &Store{next: next, collector: collector}
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.collector.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.collector.StoreOperations.WithLabelValues(op, status(err)).Inc()
}

// ListByDomain implements store.ConceptStore.
func (s *Store) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	start := time.Now()
	out, err := s.next.ListByDomain(ctx, domainID)
	s.observe("list_by_domain", start, err)
	return out, err
}

// Insert implements store.ConceptStore.
func (s *Store) Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error) {
	start := time.Now()
	out, err := s.next.Insert(ctx, concept)
	s.observe("insert", start, err)
	return out, err
}

// Update implements store.ConceptStore.
func (s *Store) Update(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error) {
	start := time.Now()
	out, err := s.next.Update(ctx, id, update)
	s.observe("update", start, err)
	return out, err
}

// Delete implements store.ConceptStore.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe("delete", start, err)
	return err
}
