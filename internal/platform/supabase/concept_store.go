package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/store"
	supa "github.com/supabase-community/supabase-go"
)

const conceptsTable = "concepts"

// PostgREST error codes surfaced in the message as "(code) text".
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeInvalidText         = "22P02"
)

var errorCode = regexp.MustCompile(`^\(([0-9A-Z]+)\)`)

// ConceptStore implements store.ConceptStore against a Supabase project.
type ConceptStore struct {
	client *supa.Client
	logger *slog.Logger
	now    func() time.Time
}

// Compile-time check to ensure ConceptStore implements store.ConceptStore.
var _ store.ConceptStore = (*ConceptStore)(nil)

// NewClient creates a Supabase client for the project at url authenticated with key.
func NewClient(url, key string) (*supa.Client, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}

// NewConceptStore creates a store over client.
func NewConceptStore(client *supa.Client, logger *slog.Logger) *ConceptStore {
	if client == nil {
		panic("client cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConceptStore{
		client: client,
		logger: logger.With(slog.String("component", "supabase_concept_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListByDomain implements store.ConceptStore.
func (s *ConceptStore) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	body, _, err := s.client.From(conceptsTable).
		Select("*", "", false).
		Eq("domain_id", domainID.String()).
		Execute()
	if err != nil {
		log.Error("failed to list concepts",
			slog.String("error", err.Error()),
			slog.String("domain_id", domainID.String()))
		return nil, mapError(err)
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	concepts := make([]*domain.Concept, 0, len(rows))
	for _, r := range rows {
		concepts = append(concepts, r.toConcept())
	}
	slices.SortFunc(concepts, func(a, b *domain.Concept) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	log.Debug("concepts listed",
		slog.String("domain_id", domainID.String()),
		slog.Int("count", len(concepts)))
	return concepts, nil
}

// Insert implements store.ConceptStore.
func (s *ConceptStore) Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := concept.Validate(); err != nil {
		log.Warn("concept validation failed during insert",
			slog.String("error", err.Error()),
			slog.String("concept_id", concept.ID.String()))
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	if concept.ParentID != nil {
		if err := s.checkParent(ctx, concept.ID, concept.DomainID, *concept.ParentID); err != nil {
			log.Warn("concept parent rejected",
				slog.String("error", err.Error()),
				slog.String("concept_id", concept.ID.String()))
			return nil, err
		}
	}

	row, err := fromConcept(concept)
	if err != nil {
		return nil, err
	}
	if row.Source == "" {
		row.Source = domain.ConceptSourceHuman
	}

	body, _, err := s.client.From(conceptsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		mapped := mapError(err)
		if store.IsDuplicateError(mapped) {
			return nil, fmt.Errorf("%w: %v", store.ErrConceptExists, err)
		}
		log.Error("failed to insert concept",
			slog.String("error", err.Error()),
			slog.String("concept_id", concept.ID.String()))
		return nil, mapped
	}

	stored, err := single(body)
	if err != nil {
		return nil, err
	}
	log.Info("concept inserted", slog.String("concept_id", stored.ID.String()))
	return stored, nil
}

// Update implements store.ConceptStore.
// PostgREST has no row locks, so the read, parent check and write are separate
// requests; the database constraints still reject cross-domain parents.
func (s *ConceptStore) Update(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	concept := current.toConcept()

	if update.ParentID != nil && update.ParentID.Value != nil &&
		!domain.SameID(concept.ParentID, update.ParentID.Value) {
		if err := s.checkParent(ctx, id, concept.DomainID, *update.ParentID.Value); err != nil {
			log.Warn("concept parent rejected",
				slog.String("error", err.Error()),
				slog.String("concept_id", id.String()))
			return nil, err
		}
	}

	next := concept.Clone()
	next.Apply(update)
	next.UpdatedAt = s.now()
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	patch, err := buildPatch(update, next, current.Metadata)
	if err != nil {
		return nil, err
	}

	body, _, err := s.client.From(conceptsTable).
		Update(patch, "representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		log.Error("failed to update concept",
			slog.String("error", err.Error()),
			slog.String("concept_id", id.String()))
		return nil, mapError(err)
	}

	stored, err := single(body)
	if err != nil {
		return nil, err
	}
	log.Info("concept updated", slog.String("concept_id", id.String()))
	return stored, nil
}

// Delete implements store.ConceptStore.
func (s *ConceptStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	body, _, err := s.client.From(conceptsTable).
		Delete("representation", "").
		Eq("id", id.String()).
		Execute()
	if err != nil {
		mapped := mapError(err)
		if errors.Is(mapped, store.ErrInvalidEntity) {
			log.Warn("concept still referenced by children", slog.String("concept_id", id.String()))
			return fmt.Errorf("%w: concept still has child concepts", mapped)
		}
		log.Error("failed to delete concept",
			slog.String("error", err.Error()),
			slog.String("concept_id", id.String()))
		return mapped
	}

	rows, err := decodeRows(body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrConceptNotFound
	}
	log.Info("concept deleted", slog.String("concept_id", id.String()))
	return nil
}

func (s *ConceptStore) getRow(ctx context.Context, id uuid.UUID) (conceptRow, error) {
	body, _, err := s.client.From(conceptsTable).
		Select("*", "", false).
		Eq("id", id.String()).
		Execute()
	if err != nil {
		return conceptRow{}, mapError(err)
	}
	rows, err := decodeRows(body)
	if err != nil {
		return conceptRow{}, err
	}
	if len(rows) == 0 {
		logger.FromContextOrDefault(ctx, s.logger).Debug("concept not found", slog.String("concept_id", id.String()))
		return conceptRow{}, store.ErrConceptNotFound
	}
	return rows[0], nil
}

// checkParent requires parentID to exist in domainID and not descend from id.
func (s *ConceptStore) checkParent(ctx context.Context, id, domainID, parentID uuid.UUID) error {
	if parentID == id {
		return fmt.Errorf("%w: concept cannot be its own parent", store.ErrInvalidEntity)
	}
	concepts, err := s.ListByDomain(ctx, domainID)
	if err != nil {
		return err
	}
	parents := make(map[uuid.UUID]*uuid.UUID, len(concepts))
	for _, c := range concepts {
		parents[c.ID] = c.ParentID
	}
	if _, ok := parents[parentID]; !ok {
		return fmt.Errorf("%w: parent %s does not exist in domain %s", store.ErrInvalidEntity, parentID, domainID)
	}
	seen := map[uuid.UUID]bool{}
	for cur := &parentID; cur != nil && !seen[*cur]; cur = parents[*cur] {
		if *cur == id {
			return fmt.Errorf("%w: parent %s descends from %s", store.ErrInvalidEntity, parentID, id)
		}
		seen[*cur] = true
	}
	return nil
}

// buildPatch returns the changed columns of update. The metadata document is
// rewritten whole with only the position key touched.
func buildPatch(update domain.ConceptUpdate, next *domain.Concept, metadata map[string]json.RawMessage) (map[string]any, error) {
	patch := map[string]any{"updated_at": next.UpdatedAt}
	if update.Name != nil {
		patch["name"] = next.Name
	}
	if update.Description != nil {
		patch["description"] = next.Description
	}
	if update.Status != nil {
		patch["status"] = next.Status
	}
	if update.ReviewedAt != nil {
		patch["reviewed_at"] = next.ReviewedAt
	}
	if update.ParentID != nil {
		patch["parent_concept_id"] = next.ParentID
	}
	if update.DisplayOrder != nil {
		patch["display_order"] = next.DisplayOrder
	}
	if update.LayoutPosition != nil {
		merged := make(map[string]json.RawMessage, len(metadata)+1)
		for k, v := range metadata {
			merged[k] = v
		}
		if err := setPosition(merged, next.LayoutPosition); err != nil {
			return nil, err
		}
		patch["metadata"] = merged
	}
	return patch, nil
}

func decodeRows(body []byte) ([]conceptRow, error) {
	var rows []conceptRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode concepts response: %w", err)
	}
	return rows, nil
}

func single(body []byte) (*domain.Concept, error) {
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrConceptNotFound
	}
	return rows[0].toConcept(), nil
}

// mapError translates PostgREST failures into store errors. Errors that carry
// no Postgres code are transport failures.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	m := errorCode.FindStringSubmatch(err.Error())
	if m == nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	switch m[1] {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case codeForeignKeyViolation, codeCheckViolation, codeNotNullViolation, codeInvalidText:
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	case "PGRST116":
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}
