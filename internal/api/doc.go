// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It is a thin adapter over service.ConceptService:
// handlers decode and validate input, call one service operation and map the
// resulting error kinds to HTTP status codes.
package api
