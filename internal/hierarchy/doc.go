// Package hierarchy keeps a domain's concepts as an in-memory forest and
// performs every structural mutation on it: create, rename, status review,
// reparenting, sibling reordering and deletion.
//
// Concepts are held in a flat id index with parent links stored as ids, so
// cycle checks and child lookups are map reads. A Repository owns one loaded
// forest and writes every change through a store.ConceptStore before applying
// it in memory. The Repository does no locking of its own; callers run all
// mutations for a domain from a single owner (see internal/service).
package hierarchy
