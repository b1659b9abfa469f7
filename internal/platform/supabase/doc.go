// Package supabase implements store.ConceptStore on a hosted Supabase project
// through its PostgREST interface.
//
// The hosted schema keeps the mindmap override inside the concept's metadata
// document under "mindmap_position"; other metadata keys are preserved on write.
package supabase
