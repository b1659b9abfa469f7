package testdb

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/phrazzld/scry-concepts/internal/platform/postgres"
	"github.com/stretchr/testify/require"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

var migrateOnce sync.Once

// GetTestDatabaseURL returns the database URL for tests.
// It checks DATABASE_URL and CONCEPTS_TEST_DB_URL in that order.
func GetTestDatabaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}
	return os.Getenv("CONCEPTS_TEST_DB_URL")
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// GetTestDBWithT returns a migrated database connection, skipping the test
// when no database is configured. The connection is closed on cleanup.
func GetTestDBWithT(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL or CONCEPTS_TEST_DB_URL not set - skipping integration test")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "Failed to open database connection")

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "Database ping failed")

	t.Cleanup(func() { CleanupDB(t, db) })

	var migrateErr error
	migrateOnce.Do(func() {
		quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
		migrateErr = postgres.Migrate(context.Background(), db, quiet, "up")
	})
	require.NoError(t, migrateErr, "Failed to run migrations")

	return db
}

// NewDomain returns a fresh domain id whose concepts are deleted when the
// test finishes.
func NewDomain(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	domainID := uuid.New()
	t.Cleanup(func() { DeleteDomain(t, db, domainID) })
	return domainID
}

// DeleteDomain removes every concept of domainID. Children are removed before
// their parents so the ON DELETE RESTRICT constraint is never hit.
func DeleteDomain(t *testing.T, db *sql.DB, domainID uuid.UUID) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	query := `
		WITH RECURSIVE tree AS (
			SELECT id, 0 AS depth FROM concepts
			WHERE domain_id = $1 AND parent_concept_id IS NULL
			UNION ALL
			SELECT c.id, t.depth + 1 FROM concepts c JOIN tree t ON c.parent_concept_id = t.id
		)
		SELECT id FROM tree ORDER BY depth DESC`

	rows, err := db.QueryContext(ctx, query, domainID)
	if err != nil {
		t.Logf("Warning: failed to list concepts for cleanup: %v", err)
		return
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	_ = rows.Close()

	for _, id := range ids {
		if _, err := db.ExecContext(ctx, `DELETE FROM concepts WHERE id = $1`, id); err != nil {
			t.Logf("Warning: failed to delete concept %s: %v", id, err)
		}
	}
}

// CleanupDB closes a database connection, logging any errors.
func CleanupDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}
}
