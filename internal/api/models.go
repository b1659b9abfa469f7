package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
)

// CreateConceptRequest defines the payload for creating a concept.
// A missing parent_concept_id creates a root concept.
type CreateConceptRequest struct {
	ParentID        *uuid.UUID `json:"parent_concept_id"`
	Name            string     `json:"name"              validate:"required,max=200"`
	Description     string     `json:"description"       validate:"max=2000"`
	Status          string     `json:"status"            validate:"omitempty,oneof=suggested approved rejected pending"`
	Source          string     `json:"source"            validate:"omitempty,oneof=ai human import"`
	DifficultyLevel int        `json:"difficulty_level"  validate:"gte=0"`
}

// UpdateConceptRequest defines the payload for editing a concept's text.
// Omitted fields are left unchanged.
type UpdateConceptRequest struct {
	Name        *string `json:"name"        validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// SetStatusRequest defines the payload for a single status change.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=suggested approved rejected pending"`
}

// BulkStatusRequest defines the payload for changing the status of many concepts.
type BulkStatusRequest struct {
	IDs    []uuid.UUID `json:"ids"    validate:"required,min=1,max=500"`
	Status string      `json:"status" validate:"required,oneof=suggested approved rejected pending"`
}

// ReparentRequest defines the payload for moving a concept.
// A null or missing parent_concept_id makes the concept a root.
type ReparentRequest struct {
	ParentID *uuid.UUID `json:"parent_concept_id"`
}

// ReorderRequest puts OrderedIDs first in the sibling group of ParentID.
type ReorderRequest struct {
	ParentID   *uuid.UUID  `json:"parent_concept_id"`
	OrderedIDs []uuid.UUID `json:"ordered_ids"       validate:"required,min=1"`
}

// PositionRequest is a mind map coordinate.
type PositionRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

// Position converts the request to a domain position.
func (p PositionRequest) Position() domain.Position {
	return domain.Position{X: *p.X, Y: *p.Y}
}

// NodePositionRequest is the position of one node in a layout save.
type NodePositionRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
	X  *float64  `json:"x"  validate:"required"`
	Y  *float64  `json:"y"  validate:"required"`
}

// SaveLayoutRequest defines the payload for persisting several positions at once.
type SaveLayoutRequest struct {
	Positions []NodePositionRequest `json:"positions" validate:"required,min=1,dive"`
}

// ResetLayoutRequest names the nodes whose overrides are cleared.
// An empty list resets every node of the domain.
type ResetLayoutRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// ConceptListResponse is the flat, naturally ordered concept list of a domain.
type ConceptListResponse struct {
	DomainID uuid.UUID         `json:"domain_id"`
	Concepts []*domain.Concept `json:"concepts"`
}

// TreeResponse is the nested concept forest of a domain.
type TreeResponse struct {
	DomainID uuid.UUID         `json:"domain_id"`
	Roots    []*hierarchy.Node `json:"roots"`
}

// MoveResponse reports whether a move up or down changed anything.
type MoveResponse struct {
	Moved bool `json:"moved"`
}

// CanReparentResponse reports whether a reparent would be accepted.
type CanReparentResponse struct {
	Allowed bool `json:"allowed"`
}

// ItemResult is the outcome for one id of a bulk operation.
type ItemResult struct {
	ID      uuid.UUID       `json:"id"`
	Concept *domain.Concept `json:"concept,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BulkResponse lists per-id outcomes of a bulk operation.
type BulkResponse struct {
	Results []ItemResult `json:"results"`
	Failed  int          `json:"failed"`
}
