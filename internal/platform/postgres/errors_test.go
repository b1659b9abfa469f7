package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-concepts/internal/platform/postgres"
	"github.com/phrazzld/scry-concepts/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "concepts",
		ColumnName:     "name",
		ConstraintName: constraint,
	}
}

// mockResult implements sql.Result for testing
type mockResult struct {
	rowsAffected int64
	err          error
}

func (m mockResult) LastInsertId() (int64, error) { return 0, m.err }
func (m mockResult) RowsAffected() (int64, error) { return m.rowsAffected, m.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	restricted := newPgError("23503", "concepts_parent_same_domain_fkey")
	restricted.Detail = `Key (id, domain_id)=(1, 2) is still referenced from table "concepts".`

	tests := []struct {
		name     string
		err      error
		want     error
		contains string
	}{
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "unique", err: newPgError("23505", "concepts_pkey"), want: store.ErrDuplicate},
		{
			name:     "missing parent",
			err:      newPgError("23503", "concepts_parent_same_domain_fkey"),
			want:     store.ErrInvalidEntity,
			contains: "same domain",
		},
		{
			name:     "delete restricted",
			err:      restricted,
			want:     store.ErrInvalidEntity,
			contains: "child concepts",
		},
		{
			name:     "other foreign key",
			err:      newPgError("23503", "other_fkey"),
			want:     store.ErrInvalidEntity,
			contains: "other_fkey",
		},
		{name: "check", err: newPgError("23514", "concepts_status_check"), want: store.ErrInvalidEntity},
		{name: "not null", err: newPgError("23502", ""), want: store.ErrInvalidEntity},
		{name: "wrapped", err: fmt.Errorf("query: %w", newPgError("23505", "x")), want: store.ErrDuplicate},
		{name: "conn done", err: sql.ErrConnDone, want: store.ErrUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := postgres.MapError(tc.err)
			assert.ErrorIs(t, got, tc.want)
			if tc.contains != "" {
				assert.Contains(t, got.Error(), tc.contains)
			}
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, postgres.MapError(nil))
	})

	t.Run("unmapped passes through", func(t *testing.T) {
		plain := errors.New("boom")
		assert.Same(t, plain, postgres.MapError(plain))

		other := newPgError("42P01", "")
		assert.Equal(t, error(other), postgres.MapError(other))
	})
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()
	assert.True(t, postgres.IsUniqueViolation(newPgError("23505", "")))
	assert.False(t, postgres.IsUniqueViolation(newPgError("23503", "")))
	assert.True(t, postgres.IsForeignKeyViolation(fmt.Errorf("wrap: %w", newPgError("23503", ""))))
	assert.False(t, postgres.IsForeignKeyViolation(errors.New("23503")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	require.NoError(t, postgres.CheckRowsAffected(mockResult{rowsAffected: 1}, "concept"))

	err := postgres.CheckRowsAffected(mockResult{}, "concept")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "concept not found")

	assert.Equal(t, store.ErrNotFound, postgres.CheckRowsAffected(mockResult{}, ""))

	boom := errors.New("driver")
	assert.ErrorIs(t, postgres.CheckRowsAffected(mockResult{err: boom}, "concept"), boom)
	assert.Error(t, postgres.CheckRowsAffected(nil, "concept"))
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()
	dup := newPgError("23505", "concepts_pkey")

	assert.ErrorIs(t, postgres.MapUniqueViolation(dup, "", "", store.ErrConceptExists), store.ErrConceptExists)

	err := postgres.MapUniqueViolation(dup, "concept", "", nil)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Contains(t, err.Error(), "concept already exists")

	err = postgres.MapUniqueViolation(dup, "", "concepts_pkey", nil)
	assert.Contains(t, err.Error(), "duplicate value for constraint: concepts_pkey")

	plain := errors.New("other")
	assert.Same(t, plain, postgres.MapUniqueViolation(plain, "concept", "", nil))
}
