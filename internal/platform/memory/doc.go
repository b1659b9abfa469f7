// Package memory provides a mutex-guarded, map-backed store.ConceptStore.
//
// It enforces the same constraints as the postgres schema (unique ids,
// domain-local parents, no deletion of referenced parents) and is used by the
// server's memory driver and as the default fake in tests.
package memory
