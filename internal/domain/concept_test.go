package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConcept(t *testing.T) {
	t.Parallel()
	domainID := uuid.New()
	parentID := uuid.New()

	concept, err := NewConcept(domainID, &parentID, "  3. Scales ", ConceptStatusApproved, ConceptSourceHuman)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, concept.ID)
	assert.Equal(t, domainID, concept.DomainID)
	require.NotNil(t, concept.ParentID)
	assert.Equal(t, parentID, *concept.ParentID)
	assert.Equal(t, "3. Scales", concept.Name)
	assert.Equal(t, ConceptStatusApproved, concept.Status)
	assert.False(t, concept.CreatedAt.IsZero())
	assert.False(t, concept.UpdatedAt.IsZero())

	// The parent pointer must not alias the caller's variable.
	parentID = uuid.New()
	assert.NotEqual(t, parentID, *concept.ParentID)

	_, err = NewConcept(domainID, nil, "   ", ConceptStatusApproved, ConceptSourceHuman)
	assert.ErrorIs(t, err, ErrConceptNameEmpty)

	_, err = NewConcept(uuid.Nil, nil, "Chords", ConceptStatusApproved, ConceptSourceHuman)
	assert.ErrorIs(t, err, ErrConceptDomainIDEmpty)

	_, err = NewConcept(domainID, nil, "Chords", "archived", ConceptSourceHuman)
	assert.ErrorIs(t, err, ErrConceptStatusInvalid)
}

func TestConceptValidate(t *testing.T) {
	t.Parallel()
	valid := Concept{
		ID:       uuid.New(),
		DomainID: uuid.New(),
		Name:     "Intervals",
		Status:   ConceptStatusSuggested,
		Source:   ConceptSourceAI,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Concept)
		want   error
	}{
		{"nil id", func(c *Concept) { c.ID = uuid.Nil }, ErrConceptIDEmpty},
		{"nil domain", func(c *Concept) { c.DomainID = uuid.Nil }, ErrConceptDomainIDEmpty},
		{"blank name", func(c *Concept) { c.Name = " \t" }, ErrConceptNameEmpty},
		{"bad status", func(c *Concept) { c.Status = "done" }, ErrConceptStatusInvalid},
		{"bad source", func(c *Concept) { c.Source = "robot" }, ErrConceptSourceInvalid},
		{"negative difficulty", func(c *Concept) { c.DifficultyLevel = -1 }, ErrConceptDifficultyInvalid},
		{"self parent", func(c *Concept) { id := c.ID; c.ParentID = &id }, ErrConceptSelfParent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.ErrorIs(t, c.Validate(), tc.want)
		})
	}
}

func TestConceptApply(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	order := 4
	c := &Concept{
		ID:             uuid.New(),
		DomainID:       uuid.New(),
		ParentID:       &parentID,
		Name:           "Rhythm",
		Status:         ConceptStatusSuggested,
		DisplayOrder:   &order,
		LayoutPosition: &Position{X: 1, Y: 2},
	}

	name := " Meter "
	status := ConceptStatusApproved
	reviewedAt := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	c.Apply(ConceptUpdate{
		Name:           &name,
		Status:         &status,
		ReviewedAt:     &reviewedAt,
		ParentID:       Clear[uuid.UUID](),
		DisplayOrder:   Set(0),
		LayoutPosition: Clear[Position](),
	})

	assert.Equal(t, "Meter", c.Name)
	assert.Equal(t, ConceptStatusApproved, c.Status)
	require.NotNil(t, c.ReviewedAt)
	assert.True(t, reviewedAt.Equal(*c.ReviewedAt))
	assert.Nil(t, c.ParentID)
	require.NotNil(t, c.DisplayOrder)
	assert.Equal(t, 0, *c.DisplayOrder)
	assert.Nil(t, c.LayoutPosition)
	assert.Equal(t, 4, order, "Apply must not write through to the previous order pointer")
}

func TestConceptClone(t *testing.T) {
	t.Parallel()
	parentID := uuid.New()
	order := 1
	original := &Concept{
		ID:             uuid.New(),
		ParentID:       &parentID,
		DisplayOrder:   &order,
		LayoutPosition: &Position{X: 10, Y: 20},
	}

	clone := original.Clone()
	*clone.ParentID = uuid.New()
	*clone.DisplayOrder = 9
	clone.LayoutPosition.X = 99

	assert.Equal(t, parentID, *original.ParentID)
	assert.Equal(t, 1, *original.DisplayOrder)
	assert.Equal(t, 10.0, original.LayoutPosition.X)
	assert.Nil(t, (*Concept)(nil).Clone())
}

func TestDefaultStatusFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ConceptStatusApproved, DefaultStatusFor(ConceptSourceHuman))
	assert.Equal(t, ConceptStatusSuggested, DefaultStatusFor(ConceptSourceAI))
	assert.Equal(t, ConceptStatusSuggested, DefaultStatusFor(ConceptSourceImport))
}

func TestSameID(t *testing.T) {
	t.Parallel()
	a := uuid.New()
	b := a
	c := uuid.New()

	assert.True(t, SameID(nil, nil))
	assert.True(t, SameID(&a, &b))
	assert.False(t, SameID(&a, &c))
	assert.False(t, SameID(&a, nil))
	assert.False(t, SameID(nil, &a))
}

func TestPositionPolar(t *testing.T) {
	t.Parallel()
	origin := Position{X: 400, Y: 300}

	p := origin.Polar(150, 0)
	assert.InDelta(t, 550, p.X, 1e-9)
	assert.InDelta(t, 300, p.Y, 1e-9)

	assert.True(t, origin.IsFinite())
	assert.False(t, Position{X: 1, Y: math.Inf(1)}.IsFinite())
}
