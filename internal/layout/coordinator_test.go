package layout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/layout"
	"github.com/phrazzld/scry-concepts/internal/mocks"
	"github.com/phrazzld/scry-concepts/internal/platform/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const debounce = 20 * time.Millisecond

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type coordFixture struct {
	domainID uuid.UUID
	concepts []*domain.Concept
	mem      *memory.ConceptStore
	store    *mocks.MockConceptStore
	notifier *mocks.MockNotifier
	coord    *layout.Coordinator
}

func newCoordFixture(t *testing.T, n int) *coordFixture {
	t.Helper()
	domainID := uuid.New()
	var concepts []*domain.Concept
	for i := 0; i < n; i++ {
		c, err := domain.NewConcept(domainID, nil, "node", domain.ConceptStatusApproved, domain.ConceptSourceHuman)
		require.NoError(t, err)
		concepts = append(concepts, c)
	}
	mem := memory.NewConceptStore(discardLogger, concepts...)
	st := mocks.NewMockConceptStore(mem)
	notifier := &mocks.MockNotifier{}
	coord := layout.NewCoordinator(domainID, st, notifier, discardLogger,
		layout.WithDebounce(debounce),
		layout.WithWriteConcurrency(2))
	t.Cleanup(func() { _ = coord.Close(context.Background()) })

	return &coordFixture{
		domainID: domainID,
		concepts: concepts,
		mem:      mem,
		store:    st,
		notifier: notifier,
		coord:    coord,
	}
}

func (fx *coordFixture) stored(t *testing.T, id uuid.UUID) *domain.Position {
	t.Helper()
	c, ok := fx.mem.Get(id)
	require.True(t, ok)
	return c.LayoutPosition
}

func TestCoordinator_DragEndSavesAfterDebounce(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID
	pos := domain.Position{X: 12, Y: 34}

	require.NoError(t, fx.coord.Drag(id, domain.Position{X: 1, Y: 1}))
	assert.Equal(t, layout.StateDragging, fx.coord.State(id))

	require.NoError(t, fx.coord.DragEnd(id, pos))
	assert.Equal(t, layout.StatePendingSave, fx.coord.State(id))
	assert.Nil(t, fx.stored(t, id), "nothing is written before the debounce elapses")

	assert.Eventually(t, func() bool {
		return fx.coord.State(id) == layout.StateSaved
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, &pos, fx.stored(t, id))
	assert.Equal(t, 1, fx.store.Calls("Update"))

	last, ok := fx.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, "Position Saved", last.Title)
}

func TestCoordinator_RepeatedDragEndWritesOnce(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID

	for i := 0; i < 5; i++ {
		require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: float64(i), Y: 0}))
	}

	assert.Eventually(t, func() bool {
		return fx.coord.State(id) == layout.StateSaved
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * debounce)

	assert.Equal(t, 1, fx.store.Calls("Update"))
	assert.Equal(t, &domain.Position{X: 4, Y: 0}, fx.stored(t, id))
}

func TestCoordinator_DragCancelsPendingSave(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 5, Y: 5}))
	require.NoError(t, fx.coord.Drag(id, domain.Position{X: 6, Y: 6}))

	time.Sleep(4 * debounce)
	assert.Zero(t, fx.store.Calls("Update"))
	assert.Equal(t, layout.StateDragging, fx.coord.State(id))

	pos, ok := fx.coord.Override(id)
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 6, Y: 6}, pos)
}

func TestCoordinator_FailedSaveKeepsPositionWithoutRetry(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID
	fx.store.UpdateFn = func(context.Context, uuid.UUID, domain.ConceptUpdate) (*domain.Concept, error) {
		return nil, errors.New("permission denied")
	}

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 9, Y: 9}))

	assert.Eventually(t, func() bool {
		return fx.store.Calls("Update") == 1
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, ok := fx.notifier.Last()
		return ok
	}, time.Second, 5*time.Millisecond)
	time.Sleep(4 * debounce)

	assert.Equal(t, 1, fx.store.Calls("Update"), "failed writes are not retried")
	assert.Equal(t, layout.StatePendingSave, fx.coord.State(id))
	pos, ok := fx.coord.Override(id)
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 9, Y: 9}, pos)

	last, _ := fx.notifier.Last()
	assert.Equal(t, events.KindError, last.Kind)
	assert.Contains(t, last.Message, "Could not save mindmap position")
}

func TestCoordinator_MergePreservesOverrides(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 0)
	root := &domain.Concept{ID: uuid.New(), Name: "root", Status: domain.ConceptStatusApproved}
	a := &domain.Concept{ID: uuid.New(), Name: "a", ParentID: &root.ID, Status: domain.ConceptStatusApproved}
	b := &domain.Concept{ID: uuid.New(), Name: "b", ParentID: &root.ID, Status: domain.ConceptStatusApproved}
	other := &domain.Concept{ID: uuid.New(), Name: "other", Status: domain.ConceptStatusApproved}

	saved := domain.Position{X: -10, Y: 77}
	withOverride := a.Clone()
	withOverride.LayoutPosition = &saved
	fx.coord.Seed([]*domain.Concept{withOverride})
	assert.Equal(t, layout.StateSaved, fx.coord.State(a.ID))

	dragged := domain.Position{X: 1, Y: 2}
	require.NoError(t, fx.coord.Drag(b.ID, dragged))

	before := fx.coord.Merge(layout.Compute([]*domain.Concept{root, a, b, other}, layout.DefaultConfig()).Positions)
	assert.Equal(t, saved, before[a.ID])
	assert.Equal(t, dragged, before[b.ID])

	// An unrelated concept appears under another parent.
	extra := &domain.Concept{ID: uuid.New(), Name: "extra", ParentID: &other.ID, Status: domain.ConceptStatusSuggested}
	computed := layout.Compute([]*domain.Concept{root, a, b, other, extra}, layout.DefaultConfig()).Positions
	after := fx.coord.Merge(computed)

	assert.Equal(t, before[a.ID], after[a.ID])
	assert.Equal(t, before[b.ID], after[b.ID])
	assert.Equal(t, computed[root.ID], after[root.ID])
	assert.Contains(t, after, extra.ID)

	delete(computed, a.ID)
	assert.NotContains(t, fx.coord.Merge(computed), a.ID, "merge never adds ids")
}

func TestCoordinator_SeedKeepsUnsavedChanges(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 0)
	id := uuid.New()
	gone := uuid.New()

	fx.coord.Seed([]*domain.Concept{
		{ID: gone, LayoutPosition: &domain.Position{X: 3, Y: 3}},
	})
	require.NoError(t, fx.coord.Drag(id, domain.Position{X: 1, Y: 1}))

	fx.coord.Seed([]*domain.Concept{
		{ID: id, LayoutPosition: &domain.Position{X: 50, Y: 50}},
		{ID: gone},
	})

	pos, _ := fx.coord.Override(id)
	assert.Equal(t, domain.Position{X: 1, Y: 1}, pos)
	assert.Equal(t, layout.StateComputed, fx.coord.State(gone))
}

func TestCoordinator_ResetLayout(t *testing.T) {
	t.Parallel()

	t.Run("clears stored and pending overrides", func(t *testing.T) {
		fx := newCoordFixture(t, 3)
		saved, pending, untouched := fx.concepts[0].ID, fx.concepts[1].ID, fx.concepts[2].ID

		_, err := fx.mem.Update(context.Background(), saved,
			domain.ConceptUpdate{LayoutPosition: domain.Set(domain.Position{X: 1, Y: 1})})
		require.NoError(t, err)
		seeded, _ := fx.mem.Get(saved)
		fx.coord.Seed([]*domain.Concept{seeded})
		require.NoError(t, fx.coord.DragEnd(pending, domain.Position{X: 2, Y: 2}))

		require.NoError(t, fx.coord.ResetLayout(context.Background(), []uuid.UUID{saved}))

		for _, id := range []uuid.UUID{saved, pending, untouched} {
			assert.Equal(t, layout.StateComputed, fx.coord.State(id))
			assert.Nil(t, fx.stored(t, id))
		}
		time.Sleep(3 * debounce)
		assert.Nil(t, fx.stored(t, pending), "cancelled timer must not write")
		assert.Equal(t, "Mindmap layout reset successfully", fx.notifier.Messages()[len(fx.notifier.Messages())-1])
	})

	t.Run("failed clears keep their override", func(t *testing.T) {
		fx := newCoordFixture(t, 2)
		ok, bad := fx.concepts[0].ID, fx.concepts[1].ID
		require.NoError(t, fx.coord.Drag(ok, domain.Position{X: 1, Y: 1}))
		require.NoError(t, fx.coord.Drag(bad, domain.Position{X: 2, Y: 2}))
		fx.store.UpdateFn = func(ctx context.Context, id uuid.UUID, u domain.ConceptUpdate) (*domain.Concept, error) {
			if id == bad {
				return nil, errors.New("offline")
			}
			return fx.mem.Update(ctx, id, u)
		}

		err := fx.coord.ResetLayout(context.Background(), nil)
		assert.ErrorIs(t, err, hierarchy.ErrStoreUnavailable)
		assert.Equal(t, layout.StateComputed, fx.coord.State(ok))
		_, has := fx.coord.Override(bad)
		assert.True(t, has)
		assert.Equal(t, "Failed to reset mindmap layout", fx.notifier.Messages()[len(fx.notifier.Messages())-1])
	})
}

func TestCoordinator_SaveAllPositions(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 3)
	a, b, c := fx.concepts[0].ID, fx.concepts[1].ID, fx.concepts[2].ID
	fx.store.UpdateFn = func(ctx context.Context, id uuid.UUID, u domain.ConceptUpdate) (*domain.Concept, error) {
		if id == b {
			return nil, errors.New("timeout")
		}
		return fx.mem.Update(ctx, id, u)
	}
	require.NoError(t, fx.coord.DragEnd(a, domain.Position{X: 100, Y: 100}))

	results := fx.coord.SaveAllPositions(context.Background(), map[uuid.UUID]domain.Position{
		a: {X: 1, Y: 1},
		b: {X: 2, Y: 2},
		c: {X: 3, Y: 3},
	})
	require.Len(t, results, 3)

	byID := map[uuid.UUID]error{}
	for _, r := range results {
		byID[r.ID] = r.Err
	}
	assert.NoError(t, byID[a])
	assert.ErrorIs(t, byID[b], hierarchy.ErrStoreUnavailable)
	assert.NoError(t, byID[c])

	assert.Equal(t, layout.StateSaved, fx.coord.State(a))
	assert.Equal(t, layout.StatePendingSave, fx.coord.State(b))
	assert.Equal(t, &domain.Position{X: 3, Y: 3}, fx.stored(t, c))

	time.Sleep(3 * debounce)
	assert.Equal(t, &domain.Position{X: 1, Y: 1}, fx.stored(t, a), "bulk save supersedes the pending drag")
}

func TestCoordinator_ForgetCancelsTimer(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 7, Y: 7}))
	fx.coord.Forget(id)

	time.Sleep(4 * debounce)
	assert.Zero(t, fx.store.Calls("Update"))
	assert.Equal(t, layout.StateComputed, fx.coord.State(id))
}

func TestCoordinator_ConcurrentNodesSaveIndependently(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 5)
	var writes atomic.Int32
	fx.store.UpdateFn = func(ctx context.Context, id uuid.UUID, u domain.ConceptUpdate) (*domain.Concept, error) {
		writes.Add(1)
		return fx.mem.Update(ctx, id, u)
	}

	for i, c := range fx.concepts {
		require.NoError(t, fx.coord.DragEnd(c.ID, domain.Position{X: float64(i), Y: float64(i)}))
	}

	assert.Eventually(t, func() bool { return writes.Load() == 5 }, time.Second, 5*time.Millisecond)
	for i, c := range fx.concepts {
		assert.Eventually(t, func() bool {
			return fx.coord.State(c.ID) == layout.StateSaved
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, &domain.Position{X: float64(i), Y: float64(i)}, fx.stored(t, c.ID))
	}
}

func TestCoordinator_Close(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 1, Y: 1}))
	require.NoError(t, fx.coord.Close(context.Background()))

	assert.ErrorIs(t, fx.coord.Drag(id, domain.Position{}), layout.ErrClosed)
	assert.ErrorIs(t, fx.coord.DragEnd(id, domain.Position{}), layout.ErrClosed)
	assert.ErrorIs(t, fx.coord.ResetLayout(context.Background(), nil), layout.ErrClosed)

	time.Sleep(3 * debounce)
	assert.Zero(t, fx.store.Calls("Update"))
}

func TestCoordinator_RejectsNonFinitePositions(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID
	nan := domain.Position{X: 0, Y: nanValue()}

	assert.ErrorIs(t, fx.coord.Drag(id, nan), domain.ErrInvalidPosition)
	assert.ErrorIs(t, fx.coord.DragEnd(id, nan), domain.ErrInvalidPosition)
	results := fx.coord.SaveAllPositions(context.Background(), map[uuid.UUID]domain.Position{id: nan})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, domain.ErrInvalidPosition)
}

// blockFirstUpdate holds the first store update until release is closed and
// reports on started once it is running. Later updates go straight through.
func (fx *coordFixture) blockFirstUpdate() (started <-chan struct{}, release chan struct{}) {
	startedCh := make(chan struct{})
	release = make(chan struct{})
	var first atomic.Bool
	fx.store.UpdateFn = func(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error) {
		if first.CompareAndSwap(false, true) {
			close(startedCh)
			<-release
		}
		return fx.mem.Update(ctx, id, update)
	}
	return startedCh, release
}

func TestCoordinator_ResetWaitsForRunningSave(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID
	started, release := fx.blockFirstUpdate()

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 11, Y: 22}))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save did not start")
	}

	resetDone := make(chan error, 1)
	go func() { resetDone <- fx.coord.ResetLayout(context.Background(), []uuid.UUID{id}) }()

	select {
	case err := <-resetDone:
		t.Fatalf("reset finished while a save was still running: %v", err)
	case <-time.After(5 * debounce):
	}

	close(release)
	select {
	case err := <-resetDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reset did not finish")
	}

	assert.Equal(t, layout.StateComputed, fx.coord.State(id))
	assert.Nil(t, fx.stored(t, id), "the earlier save must not survive the reset")

	calls := fx.store.UpdateCalls()
	require.Len(t, calls, 2)
	assert.NotNil(t, calls[0].Update.LayoutPosition.Value)
	assert.Nil(t, calls[1].Update.LayoutPosition.Value)
}

func TestCoordinator_BulkSaveWaitsForRunningSave(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID
	started, release := fx.blockFirstUpdate()

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 11, Y: 22}))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save did not start")
	}

	saveDone := make(chan []layout.SaveResult, 1)
	go func() {
		saveDone <- fx.coord.SaveAllPositions(context.Background(),
			map[uuid.UUID]domain.Position{id: {X: 5, Y: 6}})
	}()

	time.Sleep(5 * debounce)
	close(release)

	var results []layout.SaveResult
	select {
	case results = <-saveDone:
	case <-time.After(2 * time.Second):
		t.Fatal("bulk save did not finish")
	}
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	assert.Equal(t, layout.StateSaved, fx.coord.State(id))
	stored := fx.stored(t, id)
	require.NotNil(t, stored)
	assert.Equal(t, domain.Position{X: 5, Y: 6}, *stored)
}

func TestCoordinator_ResetGivesUpWhenContextEnds(t *testing.T) {
	t.Parallel()
	fx := newCoordFixture(t, 1)
	id := fx.concepts[0].ID
	started, release := fx.blockFirstUpdate()
	defer close(release)

	require.NoError(t, fx.coord.DragEnd(id, domain.Position{X: 11, Y: 22}))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced save did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*debounce)
	defer cancel()
	err := fx.coord.ResetLayout(ctx, []uuid.UUID{id})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, layout.StatePendingSave, fx.coord.State(id), "a node whose clear failed keeps its override")
}
