package layout

import (
	"math"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
)

// Config holds the geometry of the radial layout.
type Config struct {
	Origin domain.Position
	// RootRadius is the circle several roots are spread on.
	RootRadius float64
	// InitialRadius is the ring radius handed to each root.
	InitialRadius float64
	// RingStep is added to the ring radius at every level.
	RingStep float64
	// SectorNarrowing is the share of its slice a child passes on to its own children.
	SectorNarrowing float64
}

// DefaultConfig returns the standard map geometry.
func DefaultConfig() Config {
	return Config{
		Origin:          domain.Position{X: 400, Y: 300},
		RootRadius:      150,
		InitialRadius:   100,
		RingStep:        150,
		SectorNarrowing: 0.8,
	}
}

// Edge connects a parent to one of its children. Status is the child's.
type Edge struct {
	ParentID uuid.UUID            `json:"parent_id"`
	ChildID  uuid.UUID            `json:"child_id"`
	Status   domain.ConceptStatus `json:"status"`
}

// Layout is the computed placement of a forest.
type Layout struct {
	Positions map[uuid.UUID]domain.Position
	Levels    map[uuid.UUID]int
	Edges     []Edge
}

// Compute places concepts radially. Roots are concepts without a parent or
// whose parent is not among concepts. Siblings are visited in natural order,
// so the result depends only on the input set, never on its order.
func Compute(concepts []*domain.Concept, cfg Config) *Layout {
	byID := make(map[uuid.UUID]*domain.Concept, len(concepts))
	for _, c := range concepts {
		if c != nil {
			byID[c.ID] = c
		}
	}

	children := make(map[uuid.UUID][]*domain.Concept)
	var roots []*domain.Concept
	for _, c := range byID {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		if _, ok := byID[*c.ParentID]; !ok {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}
	hierarchy.SortConcepts(roots)
	for _, group := range children {
		hierarchy.SortConcepts(group)
	}

	l := &Layout{
		Positions: make(map[uuid.UUID]domain.Position, len(byID)),
		Levels:    make(map[uuid.UUID]int, len(byID)),
	}

	var place func(c *domain.Concept, at domain.Position, level int, start, end, radius float64)
	place = func(c *domain.Concept, at domain.Position, level int, start, end, radius float64) {
		if _, seen := l.Positions[c.ID]; seen {
			return
		}
		l.Positions[c.ID] = at
		l.Levels[c.ID] = level

		group := children[c.ID]
		if len(group) == 0 {
			return
		}
		step := (end - start) / float64(len(group))
		childRadius := radius + cfg.RingStep
		half := step * cfg.SectorNarrowing / 2
		for i, child := range group {
			angle := start + (float64(i)+0.5)*step
			place(child, at.Polar(childRadius, angle), level+1, angle-half, angle+half, childRadius)
		}
	}

	switch len(roots) {
	case 0:
	case 1:
		place(roots[0], cfg.Origin, 0, 0, 2*math.Pi, cfg.InitialRadius)
	default:
		n := float64(len(roots))
		for i, root := range roots {
			angle := float64(i) / n * 2 * math.Pi
			place(root, cfg.Origin.Polar(cfg.RootRadius, angle), 0,
				angle-math.Pi/n, angle+math.Pi/n, cfg.InitialRadius)
		}
	}

	l.Edges = buildEdges(roots, children, l.Positions)
	return l
}

// buildEdges lists parent-child pairs whose ends are both placed, in the
// same depth-first natural order used for placement.
func buildEdges(
	roots []*domain.Concept,
	children map[uuid.UUID][]*domain.Concept,
	positions map[uuid.UUID]domain.Position,
) []Edge {
	edges := make([]Edge, 0, len(positions))
	visited := make(map[uuid.UUID]bool, len(positions))
	var walk func(c *domain.Concept)
	walk = func(c *domain.Concept) {
		if visited[c.ID] {
			return
		}
		visited[c.ID] = true
		for _, child := range children[c.ID] {
			if _, ok := positions[child.ID]; !ok {
				continue
			}
			edges = append(edges, Edge{ParentID: c.ID, ChildID: child.ID, Status: child.Status})
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return edges
}
