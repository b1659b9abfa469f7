package supabase

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
)

const positionKey = "mindmap_position"

// conceptRow is the JSON shape of a row of the concepts table.
type conceptRow struct {
	ID              uuid.UUID                  `json:"id"`
	DomainID        uuid.UUID                  `json:"domain_id"`
	ParentConceptID *uuid.UUID                 `json:"parent_concept_id"`
	Name            string                     `json:"name"`
	Description     *string                    `json:"description"`
	Status          domain.ConceptStatus       `json:"status"`
	Source          domain.ConceptSource       `json:"source,omitempty"`
	DifficultyLevel *int                       `json:"difficulty_level"`
	DisplayOrder    *int                       `json:"display_order"`
	Metadata        map[string]json.RawMessage `json:"metadata"`
	ReviewedAt      *time.Time                 `json:"reviewed_at"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

func fromConcept(c *domain.Concept) (conceptRow, error) {
	row := conceptRow{
		ID:              c.ID,
		DomainID:        c.DomainID,
		ParentConceptID: domain.CloneID(c.ParentID),
		Name:            c.Name,
		Description:     &c.Description,
		Status:          c.Status,
		Source:          c.Source,
		DifficultyLevel: &c.DifficultyLevel,
		DisplayOrder:    c.DisplayOrder,
		Metadata:        map[string]json.RawMessage{},
		ReviewedAt:      c.ReviewedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if err := setPosition(row.Metadata, c.LayoutPosition); err != nil {
		return conceptRow{}, err
	}
	return row, nil
}

func (r conceptRow) toConcept() *domain.Concept {
	c := &domain.Concept{
		ID:           r.ID,
		DomainID:     r.DomainID,
		ParentID:     domain.CloneID(r.ParentConceptID),
		Name:         r.Name,
		Status:       r.Status,
		Source:       r.Source,
		DisplayOrder: r.DisplayOrder,
		ReviewedAt:   r.ReviewedAt,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Description != nil {
		c.Description = *r.Description
	}
	if r.DifficultyLevel != nil {
		c.DifficultyLevel = *r.DifficultyLevel
	}
	if c.ReviewedAt != nil {
		at := c.ReviewedAt.UTC()
		c.ReviewedAt = &at
	}
	c.LayoutPosition = position(r.Metadata)
	return c
}

// position reads the override from metadata. Malformed or non-finite entries
// are treated as absent.
func position(metadata map[string]json.RawMessage) *domain.Position {
	raw, ok := metadata[positionKey]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var p domain.Position
	if err := json.Unmarshal(raw, &p); err != nil || !p.IsFinite() {
		return nil
	}
	return &p
}

func setPosition(metadata map[string]json.RawMessage, p *domain.Position) error {
	if p == nil {
		delete(metadata, positionKey)
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	metadata[positionKey] = raw
	return nil
}
