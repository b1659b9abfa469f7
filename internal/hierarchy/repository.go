package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/store"
)

// Operation names used in errors, logs and notifications.
const (
	OpLoad       = "load"
	OpCreate     = "create"
	OpUpdate     = "update"
	OpSetStatus  = "set_status"
	OpBulkStatus = "bulk_set_status"
	OpReparent   = "reparent"
	OpMoveUp     = "move_up"
	OpMoveDown   = "move_down"
	OpReorder    = "reorder"
	OpDelete     = "delete"
)

// DefaultWriteConcurrency bounds the parallel store writes of a reorder.
const DefaultWriteConcurrency = 8

// NewConceptFields is the input for Create.
type NewConceptFields struct {
	ParentID        *uuid.UUID
	Name            string
	Description     string
	Status          domain.ConceptStatus // empty selects the default for Source
	Source          domain.ConceptSource // empty means human
	DifficultyLevel int
}

// FieldsUpdate carries the editable text fields of a concept.
type FieldsUpdate struct {
	Name        *string
	Description *string
}

// StatusResult is the outcome for one id of a bulk status change.
type StatusResult struct {
	ID      uuid.UUID
	Concept *domain.Concept
	Err     error
}

// Repository owns one domain's forest and keeps it in step with the store.
// It is not safe for concurrent use.
type Repository struct {
	store            store.ConceptStore
	notifier         events.Notifier
	logger           *slog.Logger
	writeConcurrency int
	now              func() time.Time

	forest *Forest
}

// Option configures a Repository.
type Option func(*Repository)

// WithWriteConcurrency sets how many order writes a reorder issues at once.
func WithWriteConcurrency(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.writeConcurrency = n
		}
	}
}

// WithClock replaces the time source used for review timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRepository creates a Repository writing through st and reporting
// outcomes to notifier.
func NewRepository(
	st store.ConceptStore,
	notifier events.Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Repository {
	if notifier == nil {
		notifier = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		store:            st,
		notifier:         notifier,
		logger:           logger.With("component", "concept_repository"),
		writeConcurrency: DefaultWriteConcurrency,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fetches every concept of the domain and replaces the in-memory forest.
func (r *Repository) Load(ctx context.Context, domainID uuid.UUID) (*Forest, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if domainID == uuid.Nil {
		return nil, newError(OpLoad, domainID, ErrValidation, domain.ErrConceptDomainIDEmpty)
	}

	concepts, err := r.store.ListByDomain(ctx, domainID)
	if err != nil {
		log.Error("failed to list concepts", "error", err, "domain_id", domainID)
		return nil, storeError(OpLoad, domainID, err)
	}

	forest, err := NewForest(domainID, concepts)
	if err != nil {
		log.Error("stored concepts do not form a forest", "error", err, "domain_id", domainID)
		return nil, err
	}

	r.forest = forest
	log.Debug("loaded concept forest", "domain_id", domainID, "concept_count", forest.Len())
	return forest, nil
}

// Forest returns the loaded forest. Its accessors hand out copies.
func (r *Repository) Forest() (*Forest, error) {
	if r.forest == nil {
		return nil, ErrNotLoaded
	}
	return r.forest, nil
}

// DomainID returns the loaded domain, or uuid.Nil before Load.
func (r *Repository) DomainID() uuid.UUID {
	if r.forest == nil {
		return uuid.Nil
	}
	return r.forest.domainID
}

// Create validates in and appends the new concept to its sibling group.
func (r *Repository) Create(ctx context.Context, in NewConceptFields) (*domain.Concept, error) {
	f, herr := r.loaded(OpCreate, uuid.Nil)
	if herr != nil {
		return nil, herr
	}

	c, herr := r.buildConcept(f, in)
	if herr != nil {
		return nil, r.fail(ctx, herr, msgCreateFailed)
	}

	stored, err := r.store.Insert(ctx, c)
	if err != nil {
		return nil, r.fail(ctx, storeError(OpCreate, c.ID, err), msgCreateFailed)
	}

	f.put(stored.Clone())
	r.succeed(ctx, OpCreate, msgCreated, stored.ID)
	logger.FromContextOrDefault(ctx, r.logger).Info("concept created",
		"concept_id", stored.ID,
		"domain_id", stored.DomainID,
		"status", stored.Status)
	return stored.Clone(), nil
}

func (r *Repository) buildConcept(f *Forest, in NewConceptFields) (*domain.Concept, *Error) {
	source := in.Source
	if source == "" {
		source = domain.ConceptSourceHuman
	}
	if !domain.IsValidConceptSource(source) {
		return nil, newError(OpCreate, uuid.Nil, ErrValidation, domain.ErrConceptSourceInvalid)
	}

	status := in.Status
	if status == "" {
		status = domain.DefaultStatusFor(source)
	}

	if in.ParentID != nil && !f.Contains(*in.ParentID) {
		return nil, newError(OpCreate, *in.ParentID, ErrValidation,
			fmt.Errorf("parent concept is not in domain %s", f.domainID))
	}

	c, err := domain.NewConcept(f.domainID, in.ParentID, in.Name, status, source)
	if err != nil {
		return nil, newError(OpCreate, uuid.Nil, ErrValidation, err)
	}
	c.Description = in.Description
	c.DifficultyLevel = in.DifficultyLevel
	c.DisplayOrder = f.appendOrder(parentKey(in.ParentID), uuid.Nil)

	if err := c.Validate(); err != nil {
		return nil, newError(OpCreate, uuid.Nil, ErrValidation, err)
	}
	return c, nil
}

// UpdateFields changes a concept's name and description.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, in FieldsUpdate) (*domain.Concept, error) {
	f, herr := r.loaded(OpUpdate, id)
	if herr != nil {
		return nil, herr
	}

	current := f.get(id)
	if current == nil {
		return nil, r.fail(ctx, newError(OpUpdate, id, ErrNotFound, nil), msgUpdateFailed)
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, r.fail(ctx, newError(OpUpdate, id, ErrValidation, domain.ErrConceptNameEmpty), msgUpdateFailed)
	}

	if in.Name == nil && in.Description == nil {
		return current.Clone(), nil
	}

	stored, err := r.store.Update(ctx, id, domain.ConceptUpdate{
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		return nil, r.fail(ctx, storeError(OpUpdate, id, err), msgUpdateFailed)
	}

	f.put(stored.Clone())
	r.succeed(ctx, OpUpdate, msgUpdated, id)
	return stored.Clone(), nil
}

// SetStatus moves a concept through its review lifecycle.
// Concepts awaiting review (suggested, pending) accept any status; reviewed
// concepts may only be re-reviewed as approved or rejected.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ConceptStatus) (*domain.Concept, error) {
	if _, herr := r.loaded(OpSetStatus, id); herr != nil {
		return nil, herr
	}

	stored, herr := r.setStatus(ctx, OpSetStatus, id, status)
	if herr != nil {
		return nil, r.fail(ctx, herr, msgStatusFailed)
	}

	r.succeed(ctx, OpSetStatus, statusMessage(status), id)
	return stored, nil
}

// BulkSetStatus applies SetStatus to each id independently.
// Results are returned in input order; one failure never stops the rest.
func (r *Repository) BulkSetStatus(ctx context.Context, ids []uuid.UUID, status domain.ConceptStatus) []StatusResult {
	results := make([]StatusResult, len(ids))
	var succeeded, failed []uuid.UUID

	for i, id := range ids {
		results[i].ID = id
		if _, herr := r.loaded(OpBulkStatus, id); herr != nil {
			results[i].Err = herr
			failed = append(failed, id)
			continue
		}
		stored, herr := r.setStatus(ctx, OpBulkStatus, id, status)
		if herr != nil {
			results[i].Err = herr
			failed = append(failed, id)
			continue
		}
		results[i].Concept = stored
		succeeded = append(succeeded, id)
	}

	if len(succeeded) > 0 {
		r.succeed(ctx, OpBulkStatus, bulkStatusMessage(len(succeeded), status), succeeded...)
	}
	if len(failed) > 0 {
		r.notify(ctx, events.Failure(OpBulkStatus, msgBulkFailed, r.DomainID(), failed...))
	}
	return results
}

func (r *Repository) setStatus(
	ctx context.Context,
	op string,
	id uuid.UUID,
	status domain.ConceptStatus,
) (*domain.Concept, *Error) {
	f := r.forest

	if !domain.IsValidConceptStatus(status) {
		return nil, newError(op, id, ErrValidation, domain.ErrConceptStatusInvalid)
	}

	current := f.get(id)
	if current == nil {
		return nil, newError(op, id, ErrNotFound, nil)
	}

	if !awaitingReview(current.Status) && !isReviewOutcome(status) {
		return nil, newError(op, id, ErrInvalidTransition,
			fmt.Errorf("%s -> %s", current.Status, status))
	}

	update := domain.ConceptUpdate{Status: &status}
	if isReviewOutcome(status) {
		at := r.now()
		update.ReviewedAt = &at
	}

	stored, err := r.store.Update(ctx, id, update)
	if err != nil {
		return nil, storeError(op, id, err)
	}
	f.put(stored.Clone())
	return stored.Clone(), nil
}

// Delete removes a concept that has no children.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	f, herr := r.loaded(OpDelete, id)
	if herr != nil {
		return herr
	}

	if f.get(id) == nil {
		return r.fail(ctx, newError(OpDelete, id, ErrNotFound, nil), msgDeleteFailed)
	}
	if f.HasChildren(id) {
		return r.fail(ctx, newError(OpDelete, id, ErrHasChildren, nil), msgHasChildren)
	}

	if err := r.store.Delete(ctx, id); err != nil {
		herr := storeError(OpDelete, id, err)
		// The store refuses to orphan children this session has not loaded yet.
		if errors.Is(err, store.ErrInvalidEntity) {
			herr = newError(OpDelete, id, ErrHasChildren, err)
			return r.fail(ctx, herr, msgHasChildren)
		}
		return r.fail(ctx, herr, msgDeleteFailed)
	}

	f.remove(id)
	r.succeed(ctx, OpDelete, msgDeleted, id)
	logger.FromContextOrDefault(ctx, r.logger).Info("concept deleted", "concept_id", id)
	return nil
}

func (r *Repository) loaded(op string, id uuid.UUID) (*Forest, *Error) {
	if r.forest == nil {
		return nil, newError(op, id, ErrNotLoaded, nil)
	}
	return r.forest, nil
}

// fail logs and reports a failed operation, returning herr.
func (r *Repository) fail(ctx context.Context, herr *Error, message string) error {
	log := logger.FromContextOrDefault(ctx, r.logger)
	if herr.Kind == ErrStoreUnavailable || herr.Kind == ErrPartialOrderFailure {
		log.Error("concept operation failed", "op", herr.Op, "concept_id", herr.ID, "error", herr)
	} else {
		log.Warn("concept operation rejected", "op", herr.Op, "concept_id", herr.ID, "error", herr)
	}

	var conceptIDs []uuid.UUID
	if herr.ID != uuid.Nil {
		conceptIDs = append(conceptIDs, herr.ID)
	}
	r.notify(ctx, events.Failure(herr.Op, message, r.DomainID(), conceptIDs...))
	return herr
}

func (r *Repository) succeed(ctx context.Context, op, message string, conceptIDs ...uuid.UUID) {
	r.notify(ctx, events.Success(op, message, r.DomainID(), conceptIDs...))
}

func (r *Repository) notify(ctx context.Context, n events.Notification) {
	if err := r.notifier.Notify(ctx, n); err != nil {
		logger.FromContextOrDefault(ctx, r.logger).Warn("notification delivery failed",
			"op", n.Operation, "error", err)
	}
}

func awaitingReview(s domain.ConceptStatus) bool {
	return s == domain.ConceptStatusSuggested || s == domain.ConceptStatusPending
}

func isReviewOutcome(s domain.ConceptStatus) bool {
	return s == domain.ConceptStatusApproved || s == domain.ConceptStatusRejected
}

func statusMessage(status domain.ConceptStatus) string {
	switch status {
	case domain.ConceptStatusApproved:
		return "Concept approved"
	case domain.ConceptStatusRejected:
		return "Concept rejected"
	default:
		return "Concept status updated"
	}
}

func bulkStatusMessage(n int, status domain.ConceptStatus) string {
	if isReviewOutcome(status) {
		return fmt.Sprintf("%d concepts %s", n, status)
	}
	return fmt.Sprintf("%d concepts updated", n)
}
