package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
)

// LogHandler writes each notification as a structured log entry.
// Error notifications are logged at warn level.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(l *slog.Logger) *LogHandler {
	if l == nil {
		l = slog.Default()
	}
	return &LogHandler{logger: l.With("component", "notifications")}
}

// HandleNotification implements Handler.
func (h *LogHandler) HandleNotification(ctx context.Context, n Notification) error {
	log := logger.FromContextOrDefault(ctx, h.logger)
	level := slog.LevelInfo
	if n.Kind == KindError {
		level = slog.LevelWarn
	}
	log.Log(ctx, level, n.Message,
		slog.String("kind", string(n.Kind)),
		slog.String("operation", n.Operation),
		slog.String("domain_id", n.DomainID.String()),
		slog.Int("concept_count", len(n.ConceptIDs)))
	return nil
}

// DefaultRecorderCapacity is the per-domain history kept by a Recorder.
const DefaultRecorderCapacity = 50

// Recorder keeps the most recent notifications per domain so that clients
// can poll for them.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	byDomain map[uuid.UUID][]Notification
}

// NewRecorder creates a Recorder holding up to capacity entries per domain.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecorderCapacity
	}
	return &Recorder{
		capacity: capacity,
		byDomain: make(map[uuid.UUID][]Notification),
	}
}

// HandleNotification implements Handler.
func (r *Recorder) HandleNotification(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.byDomain[n.DomainID], n)
	if len(list) > r.capacity {
		list = append([]Notification(nil), list[len(list)-r.capacity:]...)
	}
	r.byDomain[n.DomainID] = list
	return nil
}

// Recent returns up to limit notifications for the domain, newest last.
// A limit <= 0 returns everything recorded.
func (r *Recorder) Recent(domainID uuid.UUID, limit int) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byDomain[domainID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	out := make([]Notification, len(list))
	copy(out, list)
	return out
}

// Clear forgets the history of a domain.
func (r *Recorder) Clear(domainID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byDomain, domainID)
}
