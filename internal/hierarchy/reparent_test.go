package hierarchy_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/mocks"
	"github.com/phrazzld/scry-concepts/internal/platform/memory"
	"github.com/phrazzld/scry-concepts/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Reparent(t *testing.T) {
	t.Parallel()
	domainID := uuid.New()

	// a
	// ├── b
	// │   └── d
	// └── c
	// e
	build := func(t *testing.T) (*fixture, map[string]*domain.Concept) {
		a := seed(domainID, nil, "a", intp(0))
		b := seed(domainID, a, "b", intp(0))
		c := seed(domainID, a, "c", intp(1))
		d := seed(domainID, b, "d", intp(0))
		e := seed(domainID, nil, "e", intp(1))
		fx := newFixture(t, domainID, a, b, c, d, e)
		return fx, map[string]*domain.Concept{"a": a, "b": b, "c": c, "d": d, "e": e}
	}

	fx, nodes := build(t)
	unknown := uuid.New()
	idOf := func(nodes map[string]*domain.Concept, name string) *uuid.UUID {
		if name == "" {
			return nil
		}
		if name == "unknown" {
			return &unknown
		}
		return &nodes[name].ID
	}

	checks := []struct {
		child, parent string
		wantErr       error
	}{
		{"b", "b", hierarchy.ErrCycleDetected},
		{"a", "d", hierarchy.ErrCycleDetected},
		{"b", "d", hierarchy.ErrCycleDetected},
		{"a", "b", hierarchy.ErrCycleDetected},
		{"d", "c", nil},
		{"c", "", nil},
		{"a", "e", nil},
		{"e", "d", nil},
		{"b", "unknown", hierarchy.ErrNotFound},
		{"unknown", "a", hierarchy.ErrNotFound},
	}
	for _, tc := range checks {
		want := tc.wantErr == nil
		assert.Equal(t, want, fx.repo.CanReparent(*idOf(nodes, tc.child), idOf(nodes, tc.parent)),
			"CanReparent(%s, %q)", tc.child, tc.parent)
	}

	for _, tc := range checks {
		if tc.wantErr == nil {
			continue
		}
		t.Run("reject "+tc.child+" under "+tc.parent, func(t *testing.T) {
			fx, nodes := build(t)
			child := *idOf(nodes, tc.child)
			_, err := fx.repo.Reparent(fx.ctx, child, idOf(nodes, tc.parent))
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, fx.store.Calls("Update"))
			assert.Equal(t, []string{"Failed to update concept hierarchy"}, fx.notifier.Messages())
		})
	}

	t.Run("child of root becomes a root", func(t *testing.T) {
		fx, nodes := build(t)
		c := nodes["c"]

		moved, err := fx.repo.Reparent(fx.ctx, c.ID, nil)
		require.NoError(t, err)
		assert.Nil(t, moved.ParentID)
		require.NotNil(t, moved.DisplayOrder)
		assert.Equal(t, 2, *moved.DisplayOrder, "appended after a and e")
		assert.Equal(t, []string{"a", "e", "c"}, fx.childNames(t, nil))
		assert.Equal(t, []string{"b"}, fx.childNames(t, &nodes["a"].ID))
		assert.Equal(t, []string{"Concept hierarchy updated"}, fx.notifier.Messages())

		stored, ok := fx.mem.Get(c.ID)
		require.True(t, ok)
		assert.Nil(t, stored.ParentID)
	})

	t.Run("move subtree under a sibling", func(t *testing.T) {
		fx, nodes := build(t)
		_, err := fx.repo.Reparent(fx.ctx, nodes["b"].ID, &nodes["c"].ID)
		require.NoError(t, err)

		forest, _ := fx.repo.Forest()
		assert.True(t, forest.IsAncestor(nodes["c"].ID, nodes["d"].ID))
		assert.Equal(t, 3, forest.Depth(nodes["d"].ID))
		require.NoError(t, forest.CheckAcyclic())
	})

	t.Run("same parent writes nothing", func(t *testing.T) {
		fx, nodes := build(t)
		got, err := fx.repo.Reparent(fx.ctx, nodes["b"].ID, &nodes["a"].ID)
		require.NoError(t, err)
		assert.Equal(t, nodes["a"].ID, *got.ParentID)
		assert.Zero(t, fx.store.Calls("Update"))
	})

	t.Run("cross-domain parent rejected by store", func(t *testing.T) {
		fx, nodes := build(t)
		fx.store.UpdateFn = func(context.Context, uuid.UUID, domain.ConceptUpdate) (*domain.Concept, error) {
			return nil, errors.Join(errors.New("fk violation"), store.ErrInvalidEntity)
		}
		_, err := fx.repo.Reparent(fx.ctx, nodes["e"].ID, &nodes["a"].ID)
		assert.ErrorIs(t, err, hierarchy.ErrValidation)
		assert.Nil(t, fx.concept(t, nodes["e"].ID).ParentID)
	})
}

// TestReparent_RandomSequencesStayAcyclic applies random reparent attempts to
// random forests; every accepted attempt must leave the graph acyclic, and
// every rejected one must leave it unchanged.
func TestReparent_RandomSequencesStayAcyclic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for round := int64(0); round < 25; round++ {
		rng := rand.New(rand.NewSource(round))
		domainID := uuid.New()

		n := 2 + rng.Intn(14)
		concepts := make([]*domain.Concept, 0, n)
		for i := 0; i < n; i++ {
			var parent *domain.Concept
			if i > 0 && rng.Intn(3) > 0 {
				parent = concepts[rng.Intn(i)]
			}
			concepts = append(concepts, seed(domainID, parent, "n", nil))
		}

		mem := memory.NewConceptStore(discardLogger, concepts...)
		repo := hierarchy.NewRepository(mocks.NewMockConceptStore(mem), nil, discardLogger)
		_, err := repo.Load(ctx, domainID)
		require.NoError(t, err)

		for step := 0; step < 60; step++ {
			child := concepts[rng.Intn(n)].ID
			var parent *uuid.UUID
			if rng.Intn(5) > 0 {
				parent = &concepts[rng.Intn(n)].ID
			}

			forest, _ := repo.Forest()
			before, _ := forest.Concept(child)
			predicted := repo.CanReparent(child, parent)

			_, err := repo.Reparent(ctx, child, parent)
			assert.Equal(t, predicted, err == nil, "round %d step %d", round, step)

			require.NoError(t, forest.CheckAcyclic(), "round %d step %d", round, step)
			after, _ := forest.Concept(child)
			if err != nil {
				assert.ErrorIs(t, err, hierarchy.ErrCycleDetected)
				assert.Equal(t, before.ParentID, after.ParentID)
			} else {
				assert.True(t, domain.SameID(parent, after.ParentID))
			}
		}
	}
}
