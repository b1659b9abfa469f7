// Package testdb provides helpers for integration tests that run against a
// real Postgres database.
//
// Tests using it are skipped unless DATABASE_URL or CONCEPTS_TEST_DB_URL is
// set. The schema is brought up to date with the embedded migrations before
// the connection is handed out, and each test gets a fresh domain id so that
// tests can share one database without seeing each other's rows.
package testdb
