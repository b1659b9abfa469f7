package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// foreignKeyViolationCode is the PostgreSQL error code for foreign key violations
	foreignKeyViolationCode = "23503"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"
)

// parentConstraint is the composite foreign key tying a concept to a parent of its own domain.
const parentConstraint = "concepts_parent_same_domain_fkey"

// MapError maps a database error to an appropriate store error.
// It wraps the original error to preserve context for debugging.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case foreignKeyViolationCode:
			return fmt.Errorf("%w: %s: %v", store.ErrInvalidEntity, describeForeignKey(pgErr), err)
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ColumnName,
				err,
			)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return err
}

// describeForeignKey explains a violation of the parent constraint. Postgres
// reports the same code for a missing parent on write and for deleting a
// concept that still has children.
func describeForeignKey(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != parentConstraint {
		return fmt.Sprintf("foreign key violation (%s)", pgErr.ConstraintName)
	}
	if pgErr.TableName == "concepts" && strings.Contains(pgErr.Detail, "is still referenced") {
		return "concept still has child concepts"
	}
	return "parent concept must exist in the same domain"
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// IsForeignKeyViolation checks if the given error is a PostgreSQL foreign key constraint violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}

// CheckRowsAffected examines the number of rows affected by a database operation.
// If no rows were affected, it returns store.ErrNotFound.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if entityName == "" {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
	}

	return nil
}

// MapUniqueViolation maps a PostgreSQL unique violation error to a more specific error.
// If the error is not a unique violation, it returns the original error.
func MapUniqueViolation(
	err error,
	entityName string,
	constraintName string,
	specificError error,
) error {
	if !IsUniqueViolation(err) {
		return err
	}

	if specificError != nil {
		return fmt.Errorf("%w: %v", specificError, err)
	}

	var msg string
	switch {
	case entityName != "":
		msg = fmt.Sprintf("%s already exists", entityName)
	case constraintName != "":
		msg = fmt.Sprintf("duplicate value for constraint: %s", constraintName)
	default:
		msg = "duplicate entry"
	}

	return fmt.Errorf("%w: %s: %v", store.ErrDuplicate, msg, err)
}
