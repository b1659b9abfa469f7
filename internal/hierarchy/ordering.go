package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"golang.org/x/sync/errgroup"
)

// MoveUp swaps a concept with its previous sibling.
// It returns false, without error, when the concept is already first.
func (r *Repository) MoveUp(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.move(ctx, OpMoveUp, id, -1)
}

// MoveDown swaps a concept with its next sibling.
// It returns false, without error, when the concept is already last.
func (r *Repository) MoveDown(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.move(ctx, OpMoveDown, id, +1)
}

func (r *Repository) move(ctx context.Context, op string, id uuid.UUID, delta int) (bool, error) {
	f, herr := r.loaded(op, id)
	if herr != nil {
		return false, herr
	}

	c := f.get(id)
	if c == nil {
		return false, r.fail(ctx, newError(op, id, ErrNotFound, nil), msgMoveFailed)
	}

	key := parentKey(c.ParentID)
	group := f.siblings(key)
	idx := slices.IndexFunc(group, func(s *domain.Concept) bool { return s.ID == id })
	target := idx + delta
	if target < 0 || target >= len(group) {
		return false, nil
	}

	if herr := r.swapOrders(ctx, op, group[idx], idx, group[target], target); herr != nil {
		return false, r.fail(ctx, herr, msgMoveFailed)
	}

	sequence := ids(group)
	sequence[idx], sequence[target] = sequence[target], sequence[idx]
	if herr := r.renormalize(ctx, op, key, sequence); herr != nil {
		return false, r.fail(ctx, herr, msgMoveFailed)
	}

	r.succeed(ctx, op, msgMoved, id)
	return true, nil
}

// swapOrders exchanges the display orders of a and b, using their positions
// in the group for members that have none. If the second write fails the first
// is reverted; a failed revert is reported as ErrPartialOrderFailure.
func (r *Repository) swapOrders(
	ctx context.Context,
	op string,
	a *domain.Concept, aPos int,
	b *domain.Concept, bPos int,
) *Error {
	f := r.forest
	aOrder, bOrder := effectiveOrder(a, aPos), effectiveOrder(b, bPos)
	if aOrder == bOrder {
		// Nothing to swap; renormalization separates them.
		return nil
	}
	aPrevious := orderField(a.DisplayOrder)

	storedA, err := r.store.Update(ctx, a.ID, domain.ConceptUpdate{DisplayOrder: domain.Set(bOrder)})
	if err != nil {
		return storeError(op, a.ID, err)
	}

	storedB, err := r.store.Update(ctx, b.ID, domain.ConceptUpdate{DisplayOrder: domain.Set(aOrder)})
	if err != nil {
		reverted, revertErr := r.store.Update(ctx, a.ID, domain.ConceptUpdate{DisplayOrder: aPrevious})
		if revertErr != nil {
			f.put(storedA.Clone())
			logger.FromContextOrDefault(ctx, r.logger).Error("failed to revert display order",
				"concept_id", a.ID, "error", revertErr)
			return newError(op, a.ID, ErrPartialOrderFailure, errors.Join(err, revertErr))
		}
		f.put(reverted.Clone())
		return storeError(op, b.ID, err)
	}

	f.put(storedA.Clone())
	f.put(storedB.Clone())
	return nil
}

// Renormalize rewrites a sibling group's display orders as 0..k-1.
// orderedIDs lists members of the group in their desired order; members not
// listed keep their natural order after them. Only changed rows are written.
func (r *Repository) Renormalize(ctx context.Context, parentID *uuid.UUID, orderedIDs []uuid.UUID) error {
	var id uuid.UUID
	if parentID != nil {
		id = *parentID
	}
	if _, herr := r.loaded(OpReorder, id); herr != nil {
		return herr
	}
	if parentID != nil && !r.forest.Contains(*parentID) {
		return r.fail(ctx, newError(OpReorder, id, ErrNotFound, nil), msgReorderFailed)
	}

	if herr := r.renormalize(ctx, OpReorder, parentKey(parentID), orderedIDs); herr != nil {
		return r.fail(ctx, herr, msgReorderFailed)
	}

	r.succeed(ctx, OpReorder, msgReordered, orderedIDs...)
	return nil
}

type orderWrite struct {
	id    uuid.UUID
	order int
}

func (r *Repository) renormalize(ctx context.Context, op string, key uuid.UUID, orderedIDs []uuid.UUID) *Error {
	f := r.forest

	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		c := f.get(id)
		if c == nil {
			return newError(op, id, ErrNotFound, nil)
		}
		if parentKey(c.ParentID) != key {
			return newError(op, id, ErrValidation, fmt.Errorf("concept is not in the sibling group"))
		}
		if seen[id] {
			return newError(op, id, ErrValidation, fmt.Errorf("concept listed twice"))
		}
		seen[id] = true
	}

	sequence := slices.Clone(orderedIDs)
	for _, c := range f.siblings(key) {
		if !seen[c.ID] {
			sequence = append(sequence, c.ID)
		}
	}

	var writes []orderWrite
	for i, id := range sequence {
		if order := f.get(id).DisplayOrder; order == nil || *order != i {
			writes = append(writes, orderWrite{id: id, order: i})
		}
	}
	if len(writes) == 0 {
		return nil
	}

	stored := make([]*domain.Concept, len(writes))
	errs := make([]error, len(writes))

	var g errgroup.Group
	g.SetLimit(r.writeConcurrency)
	for i, w := range writes {
		g.Go(func() error {
			stored[i], errs[i] = r.store.Update(ctx, w.id, domain.ConceptUpdate{DisplayOrder: domain.Set(w.order)})
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for i := range writes {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("%s: %w", writes[i].id, errs[i]))
			continue
		}
		f.put(stored[i].Clone())
	}

	log := logger.FromContextOrDefault(ctx, r.logger)
	switch {
	case len(failed) == 0:
		log.Debug("sibling group renormalized", "op", op, "writes", len(writes))
		return nil
	case len(failed) == len(writes):
		return newError(op, uuid.Nil, ErrStoreUnavailable, errors.Join(failed...))
	default:
		log.Error("sibling group partially renormalized",
			"op", op, "writes", len(writes), "failed", len(failed))
		return newError(op, uuid.Nil, ErrPartialOrderFailure, errors.Join(failed...))
	}
}

func effectiveOrder(c *domain.Concept, position int) int {
	if c.DisplayOrder != nil {
		return *c.DisplayOrder
	}
	return position
}

func orderField(order *int) *domain.Field[int] {
	if order == nil {
		return domain.Clear[int]()
	}
	return domain.Set(*order)
}
