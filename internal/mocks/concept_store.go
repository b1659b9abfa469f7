package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// MockConceptStore implements store.ConceptStore for testing.
// Each method uses its Fn field when set, otherwise forwards to Delegate,
// otherwise returns the default values.
type MockConceptStore struct {
	// Custom behavior functions
	ListByDomainFn func(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error)
	InsertFn       func(ctx context.Context, concept *domain.Concept) (*domain.Concept, error)
	UpdateFn       func(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error)
	DeleteFn       func(ctx context.Context, id uuid.UUID) error

	// Delegate receives calls that have no Fn override.
	Delegate store.ConceptStore

	// Default return values
	Concepts []*domain.Concept
	Concept  *domain.Concept
	Err      error

	mu      sync.Mutex
	calls   map[string]int
	updates []UpdateCall
}

// UpdateCall records one Update invocation.
type UpdateCall struct {
	ID     uuid.UUID
	Update domain.ConceptUpdate
}

// Compile-time check to ensure MockConceptStore implements store.ConceptStore.
var _ store.ConceptStore = (*MockConceptStore)(nil)

// NewMockConceptStore creates a mock forwarding to delegate.
func NewMockConceptStore(delegate store.ConceptStore) *MockConceptStore {
	return &MockConceptStore{Delegate: delegate}
}

func (m *MockConceptStore) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how often method was invoked.
func (m *MockConceptStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// UpdateCalls returns the recorded Update invocations in call order.
func (m *MockConceptStore) UpdateCalls() []UpdateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]UpdateCall(nil), m.updates...)
}

// Reset clears the call tracking state.
func (m *MockConceptStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.updates = nil
}

// ListByDomain implements store.ConceptStore.
func (m *MockConceptStore) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	m.record("ListByDomain")
	if m.ListByDomainFn != nil {
		return m.ListByDomainFn(ctx, domainID)
	}
	if m.Delegate != nil {
		return m.Delegate.ListByDomain(ctx, domainID)
	}
	return m.Concepts, m.Err
}

// Insert implements store.ConceptStore.
func (m *MockConceptStore) Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error) {
	m.record("Insert")
	if m.InsertFn != nil {
		return m.InsertFn(ctx, concept)
	}
	if m.Delegate != nil {
		return m.Delegate.Insert(ctx, concept)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Concept != nil {
		return m.Concept, nil
	}
	return concept.Clone(), nil
}

// Update implements store.ConceptStore.
func (m *MockConceptStore) Update(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error) {
	m.record("Update")
	m.mu.Lock()
	m.updates = append(m.updates, UpdateCall{ID: id, Update: update})
	m.mu.Unlock()

	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, update)
	}
	if m.Delegate != nil {
		return m.Delegate.Update(ctx, id, update)
	}
	return m.Concept, m.Err
}

// Delete implements store.ConceptStore.
func (m *MockConceptStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.record("Delete")
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	if m.Delegate != nil {
		return m.Delegate.Delete(ctx, id)
	}
	return m.Err
}
