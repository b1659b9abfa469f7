package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConceptStatus represents the review state of a concept
type ConceptStatus string

// Possible concept status values
const (
	ConceptStatusSuggested ConceptStatus = "suggested"
	ConceptStatusApproved  ConceptStatus = "approved"
	ConceptStatusRejected  ConceptStatus = "rejected"
	ConceptStatusPending   ConceptStatus = "pending"
)

// ConceptSource records who originated a concept.
type ConceptSource string

// Possible concept sources
const (
	ConceptSourceAI     ConceptSource = "ai"
	ConceptSourceHuman  ConceptSource = "human"
	ConceptSourceImport ConceptSource = "import"
)

// Concept-specific validation errors
var (
	// ErrConceptIDEmpty is returned when a concept ID is nil.
	ErrConceptIDEmpty = errors.New("concept ID cannot be empty")

	// ErrConceptDomainIDEmpty is returned when a concept has no domain.
	ErrConceptDomainIDEmpty = errors.New("concept domain ID cannot be empty")

	// ErrConceptNameEmpty is returned when a concept name is blank.
	ErrConceptNameEmpty = errors.New("concept name cannot be empty")

	// ErrConceptStatusInvalid is returned for statuses outside the known set.
	ErrConceptStatusInvalid = errors.New("invalid concept status")

	// ErrConceptSourceInvalid is returned for sources outside the known set.
	ErrConceptSourceInvalid = errors.New("invalid concept source")

	// ErrConceptDifficultyInvalid is returned for negative difficulty levels.
	ErrConceptDifficultyInvalid = errors.New("difficulty level cannot be negative")

	// ErrConceptSelfParent is returned when a concept names itself as parent.
	ErrConceptSelfParent = errors.New("concept cannot be its own parent")
)

// Concept is a single node of a domain's curriculum hierarchy.
// Parent links are stored as ids, never as pointers; a nil ParentID marks a root.
type Concept struct {
	ID              uuid.UUID     `json:"id"`
	DomainID        uuid.UUID     `json:"domain_id"`
	ParentID        *uuid.UUID    `json:"parent_concept_id,omitempty"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	Status          ConceptStatus `json:"status"`
	Source          ConceptSource `json:"source"`
	DifficultyLevel int           `json:"difficulty_level"`
	DisplayOrder    *int          `json:"display_order,omitempty"`
	LayoutPosition  *Position     `json:"layout_position,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewConcept creates a new Concept in the given domain.
// It generates a new UUID and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewConcept(
	domainID uuid.UUID,
	parentID *uuid.UUID,
	name string,
	status ConceptStatus,
	source ConceptSource,
) (*Concept, error) {
	now := time.Now().UTC()
	concept := &Concept{
		ID:        uuid.New(),
		DomainID:  domainID,
		ParentID:  CloneID(parentID),
		Name:      strings.TrimSpace(name),
		Status:    status,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := concept.Validate(); err != nil {
		return nil, err
	}

	return concept, nil
}

// Validate checks if the Concept has valid data.
func (c *Concept) Validate() error {
	if c.ID == uuid.Nil {
		return ErrConceptIDEmpty
	}

	if c.DomainID == uuid.Nil {
		return ErrConceptDomainIDEmpty
	}

	if strings.TrimSpace(c.Name) == "" {
		return ErrConceptNameEmpty
	}

	if !IsValidConceptStatus(c.Status) {
		return ErrConceptStatusInvalid
	}

	if c.Source != "" && !IsValidConceptSource(c.Source) {
		return ErrConceptSourceInvalid
	}

	if c.DifficultyLevel < 0 {
		return ErrConceptDifficultyInvalid
	}

	if c.ParentID != nil && *c.ParentID == c.ID {
		return ErrConceptSelfParent
	}

	return nil
}

// IsRoot reports whether the concept has no parent.
func (c *Concept) IsRoot() bool {
	return c.ParentID == nil
}

// HasParent reports whether the concept's parent is id.
func (c *Concept) HasParent(id *uuid.UUID) bool {
	return SameID(c.ParentID, id)
}

// Clone returns a deep copy so callers can hand concepts out without
// exposing the repository's internal records.
func (c *Concept) Clone() *Concept {
	if c == nil {
		return nil
	}
	clone := *c
	clone.ParentID = CloneID(c.ParentID)
	if c.DisplayOrder != nil {
		order := *c.DisplayOrder
		clone.DisplayOrder = &order
	}
	if c.LayoutPosition != nil {
		pos := *c.LayoutPosition
		clone.LayoutPosition = &pos
	}
	if c.ReviewedAt != nil {
		at := *c.ReviewedAt
		clone.ReviewedAt = &at
	}
	return &clone
}

// Apply copies every field set in u onto the concept and bumps UpdatedAt.
func (c *Concept) Apply(u ConceptUpdate) {
	if u.Name != nil {
		c.Name = strings.TrimSpace(*u.Name)
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.ReviewedAt != nil {
		at := *u.ReviewedAt
		c.ReviewedAt = &at
	}
	if u.ParentID != nil {
		c.ParentID = CloneID(u.ParentID.Value)
	}
	if u.DisplayOrder != nil {
		c.DisplayOrder = nil
		if u.DisplayOrder.Value != nil {
			order := *u.DisplayOrder.Value
			c.DisplayOrder = &order
		}
	}
	if u.LayoutPosition != nil {
		c.LayoutPosition = nil
		if u.LayoutPosition.Value != nil {
			pos := *u.LayoutPosition.Value
			c.LayoutPosition = &pos
		}
	}
	c.UpdatedAt = time.Now().UTC()
}

// IsValidConceptStatus checks if the given status is a known ConceptStatus.
func IsValidConceptStatus(status ConceptStatus) bool {
	switch status {
	case ConceptStatusSuggested, ConceptStatusApproved,
		ConceptStatusRejected, ConceptStatusPending:
		return true
	default:
		return false
	}
}

// IsValidConceptSource checks if the given source is a known ConceptSource.
func IsValidConceptSource(source ConceptSource) bool {
	switch source {
	case ConceptSourceAI, ConceptSourceHuman, ConceptSourceImport:
		return true
	default:
		return false
	}
}

// DefaultStatusFor returns the initial status for concepts from source.
// Human-entered concepts are confirmed immediately; machine-originated ones
// (AI suggestions and bulk imports) wait for review.
func DefaultStatusFor(source ConceptSource) ConceptStatus {
	if source == ConceptSourceHuman {
		return ConceptStatusApproved
	}
	return ConceptStatusSuggested
}

// SameID compares two optional ids.
func SameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CloneID copies an optional id.
func CloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
