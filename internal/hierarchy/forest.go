package hierarchy

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
)

// rootKey is the children-index key of the root sibling group.
var rootKey = uuid.Nil

func parentKey(parentID *uuid.UUID) uuid.UUID {
	if parentID == nil {
		return rootKey
	}
	return *parentID
}

// Forest is the id-indexed set of concepts for one domain.
// Accessors return copies; only the Repository mutates a Forest.
type Forest struct {
	domainID uuid.UUID
	byID     map[uuid.UUID]*domain.Concept
	children map[uuid.UUID][]uuid.UUID
}

// Node is a concept together with its ordered children.
type Node struct {
	Concept  *domain.Concept `json:"concept"`
	Children []*Node         `json:"children"`
}

// NewForest indexes concepts for domainID.
// It fails with ErrValidation when a concept belongs to another domain or an
// id repeats, and with ErrCycleDetected when parent links loop.
func NewForest(domainID uuid.UUID, concepts []*domain.Concept) (*Forest, error) {
	f := &Forest{
		domainID: domainID,
		byID:     make(map[uuid.UUID]*domain.Concept, len(concepts)),
		children: make(map[uuid.UUID][]uuid.UUID),
	}

	for _, c := range concepts {
		if c == nil {
			continue
		}
		if c.DomainID != domainID {
			return nil, newError("load", c.ID, ErrValidation,
				fmt.Errorf("concept belongs to domain %s", c.DomainID))
		}
		if _, dup := f.byID[c.ID]; dup {
			return nil, newError("load", c.ID, ErrValidation, fmt.Errorf("duplicate concept id"))
		}
		f.put(c.Clone())
	}

	if id, ok := f.findCycle(); ok {
		return nil, newError("load", id, ErrCycleDetected, nil)
	}
	return f, nil
}

// DomainID returns the domain the forest belongs to.
func (f *Forest) DomainID() uuid.UUID {
	return f.domainID
}

// Len returns the number of concepts.
func (f *Forest) Len() int {
	return len(f.byID)
}

// Contains reports whether id is in the forest.
func (f *Forest) Contains(id uuid.UUID) bool {
	_, ok := f.byID[id]
	return ok
}

// Concept returns a copy of the concept with the given id.
func (f *Forest) Concept(id uuid.UUID) (*domain.Concept, bool) {
	c, ok := f.byID[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Concepts returns copies of every concept in depth-first tree order,
// siblings in natural order.
func (f *Forest) Concepts() []*domain.Concept {
	out := make([]*domain.Concept, 0, len(f.byID))
	var walk func(ids []uuid.UUID)
	walk = func(ids []uuid.UUID) {
		for _, id := range ids {
			out = append(out, f.byID[id].Clone())
			walk(f.sortedChildIDs(id))
		}
	}
	walk(f.rootIDs())
	return out
}

// Children returns copies of the concepts whose parent is parentID, in
// natural order. A nil parentID selects the roots.
func (f *Forest) Children(parentID *uuid.UUID) []*domain.Concept {
	group := f.siblings(parentKey(parentID))
	out := make([]*domain.Concept, len(group))
	for i, c := range group {
		out[i] = c.Clone()
	}
	return out
}

// Roots returns copies of the root concepts in natural order, including
// concepts whose parent is not part of the forest.
func (f *Forest) Roots() []*domain.Concept {
	roots := f.rootIDs()
	out := make([]*domain.Concept, len(roots))
	for i, id := range roots {
		out[i] = f.byID[id].Clone()
	}
	return out
}

// HasChildren reports whether any concept names id as its parent.
func (f *Forest) HasChildren(id uuid.UUID) bool {
	return len(f.children[id]) > 0
}

// Ancestors returns the ids from id's parent up to its root.
func (f *Forest) Ancestors(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	c, ok := f.byID[id]
	for ok && c.ParentID != nil && len(out) <= len(f.byID) {
		out = append(out, *c.ParentID)
		c, ok = f.byID[*c.ParentID]
	}
	return out
}

// IsAncestor reports whether ancestor appears on id's parent chain.
func (f *Forest) IsAncestor(ancestor, id uuid.UUID) bool {
	return slices.Contains(f.Ancestors(id), ancestor)
}

// Depth returns the number of ancestors of id.
func (f *Forest) Depth(id uuid.UUID) int {
	return len(f.Ancestors(id))
}

// Tree returns the forest as nested nodes, roots and siblings in natural order.
func (f *Forest) Tree() []*Node {
	var build func(ids []uuid.UUID) []*Node
	build = func(ids []uuid.UUID) []*Node {
		nodes := make([]*Node, 0, len(ids))
		for _, id := range ids {
			nodes = append(nodes, &Node{
				Concept:  f.byID[id].Clone(),
				Children: build(f.sortedChildIDs(id)),
			})
		}
		return nodes
	}
	return build(f.rootIDs())
}

// CheckAcyclic verifies that no parent chain loops.
func (f *Forest) CheckAcyclic() error {
	if id, ok := f.findCycle(); ok {
		return newError("check", id, ErrCycleDetected, nil)
	}
	return nil
}

// rootIDs returns the ids of concepts with no parent or with a parent that is
// not in the forest, in natural order.
func (f *Forest) rootIDs() []uuid.UUID {
	var roots []*domain.Concept
	for _, c := range f.byID {
		if c.ParentID == nil || !f.Contains(*c.ParentID) {
			roots = append(roots, c)
		}
	}
	SortConcepts(roots)
	return ids(roots)
}

func (f *Forest) sortedChildIDs(parent uuid.UUID) []uuid.UUID {
	return ids(f.siblings(parent))
}

// siblings returns the live concepts of a sibling group in natural order.
func (f *Forest) siblings(key uuid.UUID) []*domain.Concept {
	group := make([]*domain.Concept, 0, len(f.children[key]))
	for _, id := range f.children[key] {
		group = append(group, f.byID[id])
	}
	SortConcepts(group)
	return group
}

func (f *Forest) get(id uuid.UUID) *domain.Concept {
	return f.byID[id]
}

// put inserts or replaces c, keeping the children index in step.
func (f *Forest) put(c *domain.Concept) {
	if old, ok := f.byID[c.ID]; ok {
		f.unlink(old)
	}
	f.byID[c.ID] = c
	key := parentKey(c.ParentID)
	f.children[key] = append(f.children[key], c.ID)
}

func (f *Forest) remove(id uuid.UUID) {
	c, ok := f.byID[id]
	if !ok {
		return
	}
	f.unlink(c)
	delete(f.byID, id)
}

func (f *Forest) unlink(c *domain.Concept) {
	key := parentKey(c.ParentID)
	group := slices.DeleteFunc(f.children[key], func(id uuid.UUID) bool { return id == c.ID })
	if len(group) == 0 {
		delete(f.children, key)
		return
	}
	f.children[key] = group
}

// findCycle returns a concept on a parent loop, if any.
func (f *Forest) findCycle() (uuid.UUID, bool) {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[uuid.UUID]int, len(f.byID))

	for start := range f.byID {
		if state[start] != unvisited {
			continue
		}
		var path []uuid.UUID
		id := start
	walk:
		for {
			switch state[id] {
			case onPath:
				return id, true
			case done:
				break walk
			}
			state[id] = onPath
			path = append(path, id)
			c := f.byID[id]
			if c.ParentID == nil || !f.Contains(*c.ParentID) {
				break walk
			}
			id = *c.ParentID
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return uuid.Nil, false
}

func ids(concepts []*domain.Concept) []uuid.UUID {
	out := make([]uuid.UUID, len(concepts))
	for i, c := range concepts {
		out[i] = c.ID
	}
	return out
}

// appendOrder returns the display order that places a new member after every
// member of the group other than exclude. Unordered members already sort
// last, so a group containing one yields no order.
func (f *Forest) appendOrder(key, exclude uuid.UUID) *int {
	next := 0
	for _, id := range f.children[key] {
		if id == exclude {
			continue
		}
		order := f.byID[id].DisplayOrder
		if order == nil {
			return nil
		}
		if *order >= next {
			next = *order + 1
		}
	}
	return &next
}
