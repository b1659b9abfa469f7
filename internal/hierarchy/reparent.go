package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
)

// CanReparent reports whether Reparent(childID, newParentID) would be accepted.
func (r *Repository) CanReparent(childID uuid.UUID, newParentID *uuid.UUID) bool {
	return r.checkReparent(childID, newParentID) == nil
}

// checkReparent rejects self-parenting, unknown ids, cross-domain parents and
// any parent that already descends from the child.
func (r *Repository) checkReparent(childID uuid.UUID, newParentID *uuid.UUID) *Error {
	f, herr := r.loaded(OpReparent, childID)
	if herr != nil {
		return herr
	}

	if newParentID != nil && *newParentID == childID {
		return newError(OpReparent, childID, ErrCycleDetected, domain.ErrConceptSelfParent)
	}

	child := f.get(childID)
	if child == nil {
		return newError(OpReparent, childID, ErrNotFound, nil)
	}
	if newParentID == nil {
		return nil
	}

	parent := f.get(*newParentID)
	if parent == nil {
		return newError(OpReparent, childID, ErrNotFound,
			fmt.Errorf("parent %s", *newParentID))
	}
	if parent.DomainID != child.DomainID {
		return newError(OpReparent, childID, ErrValidation,
			fmt.Errorf("parent %s belongs to domain %s", parent.ID, parent.DomainID))
	}

	// Walk up from the new parent; meeting the child means the child would
	// become its own ancestor.
	steps := 0
	for cur := parent; cur != nil; steps++ {
		if cur.ID == childID {
			return newError(OpReparent, childID, ErrCycleDetected,
				fmt.Errorf("%s descends from %s", *newParentID, childID))
		}
		if cur.ParentID == nil || steps > f.Len() {
			break
		}
		cur = f.get(*cur.ParentID)
	}
	if steps > f.Len() {
		return newError(OpReparent, childID, ErrCycleDetected, fmt.Errorf("ancestor chain does not terminate"))
	}
	return nil
}

// Reparent moves childID under newParentID, or to the roots when newParentID
// is nil, and places it at the end of its new sibling group.
func (r *Repository) Reparent(ctx context.Context, childID uuid.UUID, newParentID *uuid.UUID) (*domain.Concept, error) {
	if herr := r.checkReparent(childID, newParentID); herr != nil {
		if herr.Kind == ErrNotLoaded {
			return nil, herr
		}
		return nil, r.fail(ctx, herr, msgReparentFailed)
	}

	f := r.forest
	child := f.get(childID)
	if child.HasParent(newParentID) {
		r.succeed(ctx, OpReparent, msgReparented, childID)
		return child.Clone(), nil
	}

	parentField := domain.Clear[uuid.UUID]()
	if newParentID != nil {
		parentField = domain.Set(*newParentID)
	}
	stored, err := r.store.Update(ctx, childID, domain.ConceptUpdate{
		ParentID:     parentField,
		DisplayOrder: orderField(f.appendOrder(parentKey(newParentID), childID)),
	})
	if err != nil {
		return nil, r.fail(ctx, storeError(OpReparent, childID, err), msgReparentFailed)
	}

	f.put(stored.Clone())
	r.succeed(ctx, OpReparent, msgReparented, childID)
	logger.FromContextOrDefault(ctx, r.logger).Info("concept reparented",
		"concept_id", childID,
		"parent_id", newParentID)
	return stored.Clone(), nil
}
