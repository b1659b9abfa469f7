// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the concept hierarchy engine, allowing its rules to remain independent
// of the hosted data store, a local PostgreSQL database, or an in-memory fake.
package store
