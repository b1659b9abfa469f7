package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/store"
)

const conceptColumns = `id, domain_id, parent_concept_id, name, description, status, source,
	difficulty_level, display_order, layout_x, layout_y, reviewed_at, created_at, updated_at`

// PostgresConceptStore implements the store.ConceptStore interface
// using a PostgreSQL database as the storage backend.
type PostgresConceptStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Ensure PostgresConceptStore implements store.ConceptStore interface
var _ store.ConceptStore = (*PostgresConceptStore)(nil)

// NewPostgresConceptStore creates a new PostgreSQL implementation of the ConceptStore interface.
// Updates run in their own transactions, so the store needs the pool rather than a DBTX.
// If logger is nil, a default logger will be used.
func NewPostgresConceptStore(db *sql.DB, logger *slog.Logger) *PostgresConceptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresConceptStore{
		db:     db,
		logger: logger.With(slog.String("component", "concept_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListByDomain implements store.ConceptStore.ListByDomain.
// Rows come back in creation order; callers apply their own sibling ordering.
func (s *PostgresConceptStore) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("listing concepts", slog.String("domain_id", domainID.String()))

	query := `SELECT ` + conceptColumns + `
		FROM concepts
		WHERE domain_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, domainID)
	if err != nil {
		log.Error("failed to list concepts",
			slog.String("error", err.Error()),
			slog.String("domain_id", domainID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	concepts := make([]*domain.Concept, 0)
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			log.Error("failed to scan concept row", slog.String("error", err.Error()))
			return nil, err
		}
		concepts = append(concepts, c)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating concept rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	log.Debug("concepts listed",
		slog.String("domain_id", domainID.String()),
		slog.Int("count", len(concepts)))
	return concepts, nil
}

// Insert implements store.ConceptStore.Insert.
// The composite foreign key rejects parents that are missing or in another domain.
func (s *PostgresConceptStore) Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := concept.Validate(); err != nil {
		log.Warn("concept validation failed during insert",
			slog.String("error", err.Error()),
			slog.String("concept_id", concept.ID.String()))
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	x, y := positionArgs(concept.LayoutPosition)
	query := `
		INSERT INTO concepts (id, domain_id, parent_concept_id, name, description, status, source,
			difficulty_level, display_order, layout_x, layout_y, reviewed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + conceptColumns

	stored, err := scanConcept(s.db.QueryRowContext(ctx, query,
		concept.ID,
		concept.DomainID,
		nullUUID(concept.ParentID),
		concept.Name,
		concept.Description,
		string(concept.Status),
		string(sourceOrDefault(concept.Source)),
		concept.DifficultyLevel,
		nullInt(concept.DisplayOrder),
		x,
		y,
		nullTime(concept.ReviewedAt),
		concept.CreatedAt,
		concept.UpdatedAt,
	))
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("concept already exists", slog.String("concept_id", concept.ID.String()))
			return nil, MapUniqueViolation(err, "concept", "", store.ErrConceptExists)
		}
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrInvalidEntity) {
			log.Warn("constraint violation during concept insert",
				slog.String("error", err.Error()),
				slog.String("concept_id", concept.ID.String()))
			return nil, mapped
		}
		log.Error("failed to insert concept",
			slog.String("error", err.Error()),
			slog.String("concept_id", concept.ID.String()))
		return nil, mapped
	}

	log.Info("concept inserted",
		slog.String("concept_id", stored.ID.String()),
		slog.String("domain_id", stored.DomainID.String()))
	return stored, nil
}

// Update implements store.ConceptStore.Update.
// The row is locked, the update applied and validated in Go, then written back
// in the same transaction. A parent change is checked for cycles first.
func (s *PostgresConceptStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update domain.ConceptUpdate,
) (*domain.Concept, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("updating concept", slog.String("concept_id", id.String()))

	var stored *domain.Concept
	err := store.RunInTransaction(logger.WithLogger(ctx, log), s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := scanConcept(tx.QueryRowContext(ctx,
			`SELECT `+conceptColumns+` FROM concepts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrConceptNotFound
			}
			return MapError(err)
		}

		if update.ParentID != nil && update.ParentID.Value != nil &&
			!domain.SameID(current.ParentID, update.ParentID.Value) {
			if err := checkNoCycle(ctx, tx, id, *update.ParentID.Value); err != nil {
				return err
			}
		}

		next := current.Clone()
		next.Apply(update)
		next.UpdatedAt = s.now()
		if err := next.Validate(); err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}

		x, y := positionArgs(next.LayoutPosition)
		stored, err = scanConcept(tx.QueryRowContext(ctx, `
			UPDATE concepts
			SET parent_concept_id = $2, name = $3, description = $4, status = $5,
				difficulty_level = $6, display_order = $7, layout_x = $8, layout_y = $9,
				reviewed_at = $10, updated_at = $11
			WHERE id = $1
			RETURNING `+conceptColumns,
			id,
			nullUUID(next.ParentID),
			next.Name,
			next.Description,
			string(next.Status),
			next.DifficultyLevel,
			nullInt(next.DisplayOrder),
			x,
			y,
			nullTime(next.ReviewedAt),
			next.UpdatedAt,
		))
		if err != nil {
			return MapError(err)
		}
		return nil
	})
	if err != nil {
		switch {
		case store.IsNotFoundError(err):
			log.Debug("concept not found for update", slog.String("concept_id", id.String()))
		case errors.Is(err, store.ErrInvalidEntity):
			log.Warn("concept update rejected",
				slog.String("error", err.Error()),
				slog.String("concept_id", id.String()))
		default:
			log.Error("failed to update concept",
				slog.String("error", err.Error()),
				slog.String("concept_id", id.String()))
		}
		return nil, err
	}

	log.Info("concept updated", slog.String("concept_id", id.String()))
	return stored, nil
}

// Delete implements store.ConceptStore.Delete.
// ON DELETE RESTRICT turns a delete of a parent into ErrInvalidEntity.
func (s *PostgresConceptStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM concepts WHERE id = $1`, id)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrInvalidEntity) {
			log.Warn("concept still referenced by children",
				slog.String("concept_id", id.String()))
			return mapped
		}
		log.Error("failed to delete concept",
			slog.String("error", err.Error()),
			slog.String("concept_id", id.String()))
		return mapped
	}

	if err := CheckRowsAffected(result, ""); err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("concept not found for deletion", slog.String("concept_id", id.String()))
			return store.ErrConceptNotFound
		}
		return err
	}

	log.Info("concept deleted", slog.String("concept_id", id.String()))
	return nil
}

// checkNoCycle fails when parentID is id itself or one of its descendants.
func checkNoCycle(ctx context.Context, q store.DBTX, id, parentID uuid.UUID) error {
	if id == parentID {
		return fmt.Errorf("%w: concept cannot be its own parent", store.ErrInvalidEntity)
	}
	query := `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_concept_id FROM concepts WHERE id = $1
			UNION
			SELECT c.id, c.parent_concept_id
			FROM concepts c
			JOIN ancestors a ON c.id = a.parent_concept_id
		)
		SELECT EXISTS (SELECT 1 FROM ancestors WHERE id = $2)`

	var cycle bool
	if err := q.QueryRowContext(ctx, query, parentID, id).Scan(&cycle); err != nil {
		return MapError(err)
	}
	if cycle {
		return fmt.Errorf("%w: parent %s descends from %s", store.ErrInvalidEntity, parentID, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConcept(row rowScanner) (*domain.Concept, error) {
	var (
		c          domain.Concept
		parentID   uuid.NullUUID
		status     string
		source     string
		order      sql.NullInt64
		x, y       sql.NullFloat64
		reviewedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.DomainID,
		&parentID,
		&c.Name,
		&c.Description,
		&status,
		&source,
		&c.DifficultyLevel,
		&order,
		&x,
		&y,
		&reviewedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}

	c.Status = domain.ConceptStatus(status)
	c.Source = domain.ConceptSource(source)
	if parentID.Valid {
		id := parentID.UUID
		c.ParentID = &id
	}
	if order.Valid {
		v := int(order.Int64)
		c.DisplayOrder = &v
	}
	if x.Valid && y.Valid {
		c.LayoutPosition = &domain.Position{X: x.Float64, Y: y.Float64}
	}
	if reviewedAt.Valid {
		at := reviewedAt.Time.UTC()
		c.ReviewedAt = &at
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func positionArgs(p *domain.Position) (sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.X, Valid: true}, sql.NullFloat64{Float64: p.Y, Valid: true}
}

func sourceOrDefault(src domain.ConceptSource) domain.ConceptSource {
	if src == "" {
		return domain.ConceptSourceHuman
	}
	return src
}
