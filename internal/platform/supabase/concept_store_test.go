package supabase_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/platform/supabase"
	"github.com/phrazzld/scry-concepts/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRest serves the subset of PostgREST the store uses over an in-memory table.
type fakeRest struct {
	mu       sync.Mutex
	rows     map[string]map[string]any
	failWith *restError
	patches  []map[string]any
}

type restError struct {
	status  int
	code    string
	message string
}

func newFakeRest() *fakeRest {
	return &fakeRest{rows: map[string]map[string]any{}}
}

func (f *fakeRest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/concepts") {
		http.NotFound(w, r)
		return
	}
	if f.failWith != nil {
		w.WriteHeader(f.failWith.status)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": f.failWith.code, "message": f.failWith.message})
		return
	}

	match := func(row map[string]any) bool {
		for key, values := range r.URL.Query() {
			if key == "select" || len(values) == 0 || !strings.HasPrefix(values[0], "eq.") {
				continue
			}
			if row[key] != strings.TrimPrefix(values[0], "eq.") {
				return false
			}
		}
		return true
	}

	out := []map[string]any{}
	switch r.Method {
	case http.MethodGet:
		for _, row := range f.rows {
			if match(row) {
				out = append(out, row)
			}
		}
	case http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		id := row["id"].(string)
		if _, exists := f.rows[id]; exists {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "23505", "message": "duplicate key"})
			return
		}
		f.rows[id] = row
		out = append(out, row)
	case http.MethodPatch:
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		f.patches = append(f.patches, patch)
		for _, row := range f.rows {
			if match(row) {
				for k, v := range patch {
					row[k] = v
				}
				out = append(out, row)
			}
		}
	case http.MethodDelete:
		for id, row := range f.rows {
			if !match(row) {
				continue
			}
			for _, other := range f.rows {
				if other["parent_concept_id"] == id {
					w.WriteHeader(http.StatusConflict)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "23503",
						"message": "update or delete on table \"concepts\" violates foreign key constraint",
					})
					return
				}
			}
			delete(f.rows, id)
			out = append(out, row)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func newStore(t *testing.T) (*supabase.ConceptStore, *fakeRest) {
	t.Helper()
	fake := newFakeRest()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := supabase.NewClient(srv.URL, "service-role-key")
	require.NoError(t, err)
	return supabase.NewConceptStore(client, slog.New(slog.NewTextHandler(io.Discard, nil))), fake
}

func newConcept(t *testing.T, domainID uuid.UUID, parentID *uuid.UUID, name string) *domain.Concept {
	t.Helper()
	c, err := domain.NewConcept(domainID, parentID, name, domain.ConceptStatusSuggested, domain.ConceptSourceAI)
	require.NoError(t, err)
	c.CreatedAt = c.CreatedAt.Truncate(time.Millisecond)
	c.UpdatedAt = c.CreatedAt
	return c
}

func TestConceptStore_InsertAndList(t *testing.T) {
	t.Parallel()
	st, _ := newStore(t)
	ctx := context.Background()
	domainID := uuid.New()

	root := newConcept(t, domainID, nil, "Harmony")
	child := newConcept(t, domainID, &root.ID, "Chords")
	child.CreatedAt = root.CreatedAt.Add(time.Second)
	other := newConcept(t, uuid.New(), nil, "Elsewhere")

	for _, c := range []*domain.Concept{root, child, other} {
		stored, err := st.Insert(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, c.ID, stored.ID)
	}

	got, err := st.ListByDomain(ctx, domainID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Harmony", got[0].Name)
	assert.Equal(t, "Chords", got[1].Name)
	require.NotNil(t, got[1].ParentID)
	assert.Equal(t, root.ID, *got[1].ParentID)
	assert.Equal(t, domain.ConceptStatusSuggested, got[1].Status)
	assert.Nil(t, got[1].LayoutPosition)
}

func TestConceptStore_InsertRejects(t *testing.T) {
	t.Parallel()
	st, _ := newStore(t)
	ctx := context.Background()
	domainID := uuid.New()

	foreignRoot := newConcept(t, uuid.New(), nil, "Foreign")
	_, err := st.Insert(ctx, foreignRoot)
	require.NoError(t, err)

	t.Run("parent in another domain", func(t *testing.T) {
		c := newConcept(t, domainID, &foreignRoot.ID, "Child")
		_, err := st.Insert(ctx, c)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := st.Insert(ctx, foreignRoot)
		assert.ErrorIs(t, err, store.ErrConceptExists)
	})

	t.Run("invalid concept", func(t *testing.T) {
		c := newConcept(t, domainID, nil, "ok")
		c.Name = ""
		_, err := st.Insert(ctx, c)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestConceptStore_UpdatePreservesMetadata(t *testing.T) {
	t.Parallel()
	st, fake := newStore(t)
	ctx := context.Background()
	c := newConcept(t, uuid.New(), nil, "Rhythm")
	_, err := st.Insert(ctx, c)
	require.NoError(t, err)

	fake.mu.Lock()
	fake.rows[c.ID.String()]["metadata"] = map[string]any{"color": "teal"}
	fake.mu.Unlock()

	got, err := st.Update(ctx, c.ID, domain.ConceptUpdate{
		LayoutPosition: domain.Set(domain.Position{X: 12.5, Y: -4}),
	})
	require.NoError(t, err)
	require.NotNil(t, got.LayoutPosition)
	assert.Equal(t, domain.Position{X: 12.5, Y: -4}, *got.LayoutPosition)

	fake.mu.Lock()
	metadata := fake.rows[c.ID.String()]["metadata"].(map[string]any)
	patch := fake.patches[len(fake.patches)-1]
	fake.mu.Unlock()
	assert.Equal(t, "teal", metadata["color"])
	assert.Contains(t, metadata, "mindmap_position")
	assert.NotContains(t, patch, "name", "only changed columns are sent")

	got, err = st.Update(ctx, c.ID, domain.ConceptUpdate{LayoutPosition: domain.Clear[domain.Position]()})
	require.NoError(t, err)
	assert.Nil(t, got.LayoutPosition)

	fake.mu.Lock()
	metadata = fake.rows[c.ID.String()]["metadata"].(map[string]any)
	fake.mu.Unlock()
	assert.NotContains(t, metadata, "mindmap_position")
	assert.Equal(t, "teal", metadata["color"])
}

func TestConceptStore_UpdateParent(t *testing.T) {
	t.Parallel()
	st, _ := newStore(t)
	ctx := context.Background()
	domainID := uuid.New()

	a := newConcept(t, domainID, nil, "A")
	b := newConcept(t, domainID, &a.ID, "B")
	for _, c := range []*domain.Concept{a, b} {
		_, err := st.Insert(ctx, c)
		require.NoError(t, err)
	}

	_, err := st.Update(ctx, a.ID, domain.ConceptUpdate{ParentID: domain.Set(b.ID)})
	assert.ErrorIs(t, err, store.ErrInvalidEntity, "a cannot move under its own child")

	got, err := st.Update(ctx, b.ID, domain.ConceptUpdate{ParentID: domain.Clear[uuid.UUID](), DisplayOrder: domain.Set(1)})
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
	require.NotNil(t, got.DisplayOrder)
	assert.Equal(t, 1, *got.DisplayOrder)

	_, err = st.Update(ctx, uuid.New(), domain.ConceptUpdate{DisplayOrder: domain.Set(1)})
	assert.ErrorIs(t, err, store.ErrConceptNotFound)
}

func TestConceptStore_Delete(t *testing.T) {
	t.Parallel()
	st, _ := newStore(t)
	ctx := context.Background()
	domainID := uuid.New()

	parent := newConcept(t, domainID, nil, "Parent")
	child := newConcept(t, domainID, &parent.ID, "Child")
	for _, c := range []*domain.Concept{parent, child} {
		_, err := st.Insert(ctx, c)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, st.Delete(ctx, parent.ID), store.ErrInvalidEntity)
	require.NoError(t, st.Delete(ctx, child.ID))
	require.NoError(t, st.Delete(ctx, parent.ID))
	assert.ErrorIs(t, st.Delete(ctx, parent.ID), store.ErrConceptNotFound)
}

func TestConceptStore_ServerErrors(t *testing.T) {
	t.Parallel()
	st, fake := newStore(t)
	fake.failWith = &restError{status: http.StatusBadRequest, code: "22P02", message: "invalid input syntax"}

	_, err := st.ListByDomain(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	fake.failWith = &restError{status: http.StatusInternalServerError, code: "XX000", message: "internal"}
	_, err = st.ListByDomain(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrInvalidEntity)
}

func TestConceptStore_Unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := supabase.NewClient(url, "key")
	require.NoError(t, err)
	st := supabase.NewConceptStore(client, nil)

	_, err = st.ListByDomain(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestConceptStore_CancelledContext(t *testing.T) {
	t.Parallel()
	st, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.ListByDomain(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}
