// Package events delivers user-facing notifications about concept mutations.
//
// Components that change the hierarchy or the layout report each outcome as a
// Notification through the Notifier interface without knowing who consumes it.
// The in-memory emitter fans a notification out to every registered handler:
// a structured log line, a bounded recorder that clients can poll, and
// metrics counters.
package events
