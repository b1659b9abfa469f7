package domain

import (
	"time"

	"github.com/google/uuid"
)

// Field marks a nullable column as changed. A nil *Field leaves the column
// untouched; a Field with a nil Value clears it.
type Field[T any] struct {
	Value *T
}

// Set returns a Field that assigns v.
func Set[T any](v T) *Field[T] {
	return &Field[T]{Value: &v}
}

// Clear returns a Field that sets the column to NULL.
func Clear[T any]() *Field[T] {
	return &Field[T]{}
}

// ConceptUpdate is a partial update of a stored concept.
// Nil members are left unchanged.
type ConceptUpdate struct {
	Name           *string
	Description    *string
	Status         *ConceptStatus
	ReviewedAt     *time.Time
	ParentID       *Field[uuid.UUID]
	DisplayOrder   *Field[int]
	LayoutPosition *Field[Position]
}

// IsEmpty reports whether the update changes nothing.
func (u ConceptUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil &&
		u.ReviewedAt == nil && u.ParentID == nil && u.DisplayOrder == nil &&
		u.LayoutPosition == nil
}
