// Package resilience guards the concept store with a circuit breaker so a
// failing backend is reported as unavailable instead of being hammered.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/store"
	"github.com/sony/gobreaker"
)

// Settings configures a BreakerStore.
type Settings struct {
	Name string
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed; zero never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Name:                "concept_store",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore decorates a store.ConceptStore with a circuit breaker.
// Only infrastructure failures count against the breaker; not-found,
// duplicate, constraint and cancellation errors are the caller's problem.
type BreakerStore struct {
	next    store.ConceptStore
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Compile-time check to ensure BreakerStore implements store.ConceptStore.
var _ store.ConceptStore = (*BreakerStore)(nil)

// NewBreakerStore wraps next.
func NewBreakerStore(next store.ConceptStore, settings Settings, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = DefaultSettings().ConsecutiveFailures
	}
	log := logger.With("component", "store_breaker", "breaker", settings.Name)

	threshold := settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: countsAsSuccess,
	})

	return &BreakerStore{next: next, breaker: cb, logger: log}
}

// State reports the breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}

// ListByDomain implements store.ConceptStore.
func (s *BreakerStore) ListByDomain(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	return call(s, func() ([]*domain.Concept, error) { return s.next.ListByDomain(ctx, domainID) })
}

// Insert implements store.ConceptStore.
func (s *BreakerStore) Insert(ctx context.Context, concept *domain.Concept) (*domain.Concept, error) {
	return call(s, func() (*domain.Concept, error) { return s.next.Insert(ctx, concept) })
}

// Update implements store.ConceptStore.
func (s *BreakerStore) Update(ctx context.Context, id uuid.UUID, update domain.ConceptUpdate) (*domain.Concept, error) {
	return call(s, func() (*domain.Concept, error) { return s.next.Update(ctx, id, update) })
}

// Delete implements store.ConceptStore.
func (s *BreakerStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := call(s, func() (struct{}, error) { return struct{}{}, s.next.Delete(ctx, id) })
	return err
}

func call[T any](s *BreakerStore, fn func() (T, error)) (T, error) {
	var zero T
	out, err := s.breaker.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Debug("store call rejected by breaker", slog.String("error", err.Error()))
			return zero, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
		}
		return zero, err
	}
	return out.(T), nil
}

func countsAsSuccess(err error) bool {
	return err == nil ||
		store.IsNotFoundError(err) ||
		store.IsDuplicateError(err) ||
		errors.Is(err, store.ErrInvalidEntity) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, context.Canceled)
}
