package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/layout"
	"github.com/phrazzld/scry-concepts/internal/service"
)

// MockConceptService implements service.ConceptService for handler tests.
// Methods without an Fn field return zero values.
type MockConceptService struct {
	ConceptsFn      func(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error)
	TreeFn          func(ctx context.Context, domainID uuid.UUID) ([]*hierarchy.Node, error)
	RefreshFn       func(ctx context.Context, domainID uuid.UUID) error
	CreateConceptFn func(ctx context.Context, domainID uuid.UUID, in hierarchy.NewConceptFields) (*domain.Concept, error)
	UpdateConceptFn func(ctx context.Context, domainID, id uuid.UUID, in hierarchy.FieldsUpdate) (*domain.Concept, error)
	SetStatusFn     func(ctx context.Context, domainID, id uuid.UUID, status domain.ConceptStatus) (*domain.Concept, error)
	BulkSetStatusFn func(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID, status domain.ConceptStatus) ([]hierarchy.StatusResult, error)
	CanReparentFn   func(ctx context.Context, domainID, id uuid.UUID, newParentID *uuid.UUID) (bool, error)
	ReparentFn      func(ctx context.Context, domainID, id uuid.UUID, newParentID *uuid.UUID) (*domain.Concept, error)
	MoveUpFn        func(ctx context.Context, domainID, id uuid.UUID) (bool, error)
	MoveDownFn      func(ctx context.Context, domainID, id uuid.UUID) (bool, error)
	ReorderFn       func(ctx context.Context, domainID uuid.UUID, parentID *uuid.UUID, orderedIDs []uuid.UUID) error
	DeleteConceptFn func(ctx context.Context, domainID, id uuid.UUID) error
	LayoutFn        func(ctx context.Context, domainID uuid.UUID) (*service.MindMap, error)
	DragFn          func(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error
	DragEndFn       func(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error
	SavePositionsFn func(ctx context.Context, domainID uuid.UUID, positions map[uuid.UUID]domain.Position) ([]layout.SaveResult, error)
	ResetLayoutFn   func(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) error
	CloseFn         func(ctx context.Context) error
}

// Compile-time check to ensure MockConceptService implements service.ConceptService.
var _ service.ConceptService = (*MockConceptService)(nil)

// Concepts implements service.ConceptService.
func (m *MockConceptService) Concepts(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	if m.ConceptsFn != nil {
		return m.ConceptsFn(ctx, domainID)
	}
	return []*domain.Concept{}, nil
}

// Tree implements service.ConceptService.
func (m *MockConceptService) Tree(ctx context.Context, domainID uuid.UUID) ([]*hierarchy.Node, error) {
	if m.TreeFn != nil {
		return m.TreeFn(ctx, domainID)
	}
	return []*hierarchy.Node{}, nil
}

// Refresh implements service.ConceptService.
func (m *MockConceptService) Refresh(ctx context.Context, domainID uuid.UUID) error {
	if m.RefreshFn != nil {
		return m.RefreshFn(ctx, domainID)
	}
	return nil
}

// CreateConcept implements service.ConceptService.
func (m *MockConceptService) CreateConcept(
	ctx context.Context,
	domainID uuid.UUID,
	in hierarchy.NewConceptFields,
) (*domain.Concept, error) {
	if m.CreateConceptFn != nil {
		return m.CreateConceptFn(ctx, domainID, in)
	}
	return nil, nil
}

// UpdateConcept implements service.ConceptService.
func (m *MockConceptService) UpdateConcept(
	ctx context.Context,
	domainID, id uuid.UUID,
	in hierarchy.FieldsUpdate,
) (*domain.Concept, error) {
	if m.UpdateConceptFn != nil {
		return m.UpdateConceptFn(ctx, domainID, id, in)
	}
	return nil, nil
}

// SetStatus implements service.ConceptService.
func (m *MockConceptService) SetStatus(
	ctx context.Context,
	domainID, id uuid.UUID,
	status domain.ConceptStatus,
) (*domain.Concept, error) {
	if m.SetStatusFn != nil {
		return m.SetStatusFn(ctx, domainID, id, status)
	}
	return nil, nil
}

// BulkSetStatus implements service.ConceptService.
func (m *MockConceptService) BulkSetStatus(
	ctx context.Context,
	domainID uuid.UUID,
	ids []uuid.UUID,
	status domain.ConceptStatus,
) ([]hierarchy.StatusResult, error) {
	if m.BulkSetStatusFn != nil {
		return m.BulkSetStatusFn(ctx, domainID, ids, status)
	}
	return nil, nil
}

// CanReparent implements service.ConceptService.
func (m *MockConceptService) CanReparent(
	ctx context.Context,
	domainID, id uuid.UUID,
	newParentID *uuid.UUID,
) (bool, error) {
	if m.CanReparentFn != nil {
		return m.CanReparentFn(ctx, domainID, id, newParentID)
	}
	return true, nil
}

// Reparent implements service.ConceptService.
func (m *MockConceptService) Reparent(
	ctx context.Context,
	domainID, id uuid.UUID,
	newParentID *uuid.UUID,
) (*domain.Concept, error) {
	if m.ReparentFn != nil {
		return m.ReparentFn(ctx, domainID, id, newParentID)
	}
	return nil, nil
}

// MoveUp implements service.ConceptService.
func (m *MockConceptService) MoveUp(ctx context.Context, domainID, id uuid.UUID) (bool, error) {
	if m.MoveUpFn != nil {
		return m.MoveUpFn(ctx, domainID, id)
	}
	return false, nil
}

// MoveDown implements service.ConceptService.
func (m *MockConceptService) MoveDown(ctx context.Context, domainID, id uuid.UUID) (bool, error) {
	if m.MoveDownFn != nil {
		return m.MoveDownFn(ctx, domainID, id)
	}
	return false, nil
}

// Reorder implements service.ConceptService.
func (m *MockConceptService) Reorder(
	ctx context.Context,
	domainID uuid.UUID,
	parentID *uuid.UUID,
	orderedIDs []uuid.UUID,
) error {
	if m.ReorderFn != nil {
		return m.ReorderFn(ctx, domainID, parentID, orderedIDs)
	}
	return nil
}

// DeleteConcept implements service.ConceptService.
func (m *MockConceptService) DeleteConcept(ctx context.Context, domainID, id uuid.UUID) error {
	if m.DeleteConceptFn != nil {
		return m.DeleteConceptFn(ctx, domainID, id)
	}
	return nil
}

// Layout implements service.ConceptService.
func (m *MockConceptService) Layout(ctx context.Context, domainID uuid.UUID) (*service.MindMap, error) {
	if m.LayoutFn != nil {
		return m.LayoutFn(ctx, domainID)
	}
	return &service.MindMap{DomainID: domainID}, nil
}

// Drag implements service.ConceptService.
func (m *MockConceptService) Drag(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error {
	if m.DragFn != nil {
		return m.DragFn(ctx, domainID, id, pos)
	}
	return nil
}

// DragEnd implements service.ConceptService.
func (m *MockConceptService) DragEnd(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error {
	if m.DragEndFn != nil {
		return m.DragEndFn(ctx, domainID, id, pos)
	}
	return nil
}

// SavePositions implements service.ConceptService.
func (m *MockConceptService) SavePositions(
	ctx context.Context,
	domainID uuid.UUID,
	positions map[uuid.UUID]domain.Position,
) ([]layout.SaveResult, error) {
	if m.SavePositionsFn != nil {
		return m.SavePositionsFn(ctx, domainID, positions)
	}
	return nil, nil
}

// ResetLayout implements service.ConceptService.
func (m *MockConceptService) ResetLayout(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) error {
	if m.ResetLayoutFn != nil {
		return m.ResetLayoutFn(ctx, domainID, ids)
	}
	return nil
}

// Close implements service.ConceptService.
func (m *MockConceptService) Close(ctx context.Context) error {
	if m.CloseFn != nil {
		return m.CloseFn(ctx)
	}
	return nil
}
