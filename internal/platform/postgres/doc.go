// Package postgres provides the PostgreSQL implementation of store.ConceptStore
// and the embedded goose migrations that create its schema.
//
// Parent links are enforced by a composite foreign key on
// (parent_concept_id, domain_id), so a concept can only hang under a parent of
// its own domain, and ON DELETE RESTRICT keeps parents from being removed while
// children still reference them.
package postgres
