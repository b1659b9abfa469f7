package hierarchy_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/mocks"
	"github.com/phrazzld/scry-concepts/internal/platform/memory"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixture wires a Repository to an in-memory store behind a mock, so tests
// can inject failures on individual calls.
type fixture struct {
	ctx      context.Context
	domainID uuid.UUID
	mem      *memory.ConceptStore
	store    *mocks.MockConceptStore
	notifier *mocks.MockNotifier
	repo     *hierarchy.Repository
}

func newFixture(t *testing.T, domainID uuid.UUID, seed ...*domain.Concept) *fixture {
	t.Helper()
	mem := memory.NewConceptStore(discardLogger, seed...)
	st := mocks.NewMockConceptStore(mem)
	notifier := &mocks.MockNotifier{}
	fixed := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	repo := hierarchy.NewRepository(st, notifier, discardLogger,
		hierarchy.WithWriteConcurrency(4),
		hierarchy.WithClock(func() time.Time { return fixed }))

	fx := &fixture{
		ctx:      context.Background(),
		domainID: domainID,
		mem:      mem,
		store:    st,
		notifier: notifier,
		repo:     repo,
	}
	_, err := repo.Load(fx.ctx, domainID)
	require.NoError(t, err)
	notifier.Reset()
	st.Reset()
	return fx
}

// seed creates a stored concept with an optional explicit order.
func seed(domainID uuid.UUID, parent *domain.Concept, name string, order *int) *domain.Concept {
	c := &domain.Concept{
		ID:           uuid.New(),
		DomainID:     domainID,
		Name:         name,
		Status:       domain.ConceptStatusApproved,
		Source:       domain.ConceptSourceHuman,
		DisplayOrder: order,
		CreatedAt:    time.Now().UTC(),
	}
	if parent != nil {
		c.ParentID = domain.CloneID(&parent.ID)
	}
	return c
}

func intp(v int) *int { return &v }

// childNames returns the names of parent's children in natural order.
func (fx *fixture) childNames(t *testing.T, parent *uuid.UUID) []string {
	t.Helper()
	forest, err := fx.repo.Forest()
	require.NoError(t, err)
	var out []string
	for _, c := range forest.Children(parent) {
		out = append(out, c.Name)
	}
	return out
}

// storedOrders reads the display orders of a sibling group from the store.
func (fx *fixture) storedOrders(t *testing.T, parent *uuid.UUID) map[string]*int {
	t.Helper()
	all, err := fx.mem.ListByDomain(fx.ctx, fx.domainID)
	require.NoError(t, err)
	out := make(map[string]*int)
	for _, c := range all {
		if domain.SameID(c.ParentID, parent) {
			out[c.Name] = c.DisplayOrder
		}
	}
	return out
}

// concept fetches a concept from the repository's forest.
func (fx *fixture) concept(t *testing.T, id uuid.UUID) *domain.Concept {
	t.Helper()
	forest, err := fx.repo.Forest()
	require.NoError(t, err)
	c, ok := forest.Concept(id)
	require.True(t, ok, "concept %s not in forest", id)
	return c
}
