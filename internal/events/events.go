package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification for presentation.
type Kind string

// Notification kinds.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notification is a single user-facing outcome message.
type Notification struct {
	ID         uuid.UUID   `json:"id"`
	Kind       Kind        `json:"kind"`
	Title      string      `json:"title,omitempty"`
	Message    string      `json:"message"`
	Operation  string      `json:"operation"`
	DomainID   uuid.UUID   `json:"domain_id"`
	ConceptIDs []uuid.UUID `json:"concept_ids,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewNotification creates a notification stamped with a fresh id and the current time.
func NewNotification(kind Kind, operation, message string, domainID uuid.UUID, conceptIDs ...uuid.UUID) Notification {
	return Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Message:    message,
		Operation:  operation,
		DomainID:   domainID,
		ConceptIDs: conceptIDs,
		CreatedAt:  time.Now().UTC(),
	}
}

// Success is shorthand for a KindSuccess notification.
func Success(operation, message string, domainID uuid.UUID, conceptIDs ...uuid.UUID) Notification {
	return NewNotification(KindSuccess, operation, message, domainID, conceptIDs...)
}

// Failure is shorthand for a KindError notification.
func Failure(operation, message string, domainID uuid.UUID, conceptIDs ...uuid.UUID) Notification {
	return NewNotification(KindError, operation, message, domainID, conceptIDs...)
}

// WithTitle returns a copy of n with the given title.
func (n Notification) WithTitle(title string) Notification {
	n.Title = title
	return n
}

// Handler processes notifications.
type Handler interface {
	// HandleNotification processes the notification within the provided context.
	// Returns an error if the notification cannot be handled.
	HandleNotification(ctx context.Context, n Notification) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, n Notification) error

// HandleNotification calls f.
func (f HandlerFunc) HandleNotification(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Notifier is the sink that mutation code reports outcomes to.
// Delivery is synchronous; callers treat a returned error as informational
// and never fail the mutation because of it.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Discard is a Notifier that drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(context.Context, Notification) error { return nil }
