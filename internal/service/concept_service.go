package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/layout"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/store"
	"golang.org/x/sync/singleflight"
)

// Service operation names.
const (
	OpLoadSession   = "load_session"
	OpRefresh       = "refresh"
	OpLayout        = "layout"
	OpDrag          = "drag"
	OpSavePositions = "save_positions"
	OpResetLayout   = "reset_layout"
)

// MindMapNode is one placed concept of a mind map.
type MindMapNode struct {
	Concept  *domain.Concept  `json:"concept"`
	Position domain.Position  `json:"position"`
	Level    int              `json:"level"`
	State    layout.NodeState `json:"state"`
	// Overridden is set when the position comes from a drag or a stored override.
	Overridden bool `json:"overridden"`
}

// MindMap is the merged layout of a domain.
type MindMap struct {
	DomainID uuid.UUID     `json:"domain_id"`
	Nodes    []MindMapNode `json:"nodes"`
	Edges    []layout.Edge `json:"edges"`
}

// ConceptService provides the concept hierarchy and mind map operations for
// any number of domains.
type ConceptService interface {
	// Concepts returns every concept of the domain in natural depth-first order.
	Concepts(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error)

	// Tree returns the domain's forest as nested nodes.
	Tree(ctx context.Context, domainID uuid.UUID) ([]*hierarchy.Node, error)

	// Refresh reloads the domain from the store. Unsaved drags survive.
	Refresh(ctx context.Context, domainID uuid.UUID) error

	// CreateConcept adds a concept at the end of its sibling group.
	CreateConcept(ctx context.Context, domainID uuid.UUID, in hierarchy.NewConceptFields) (*domain.Concept, error)

	// UpdateConcept changes a concept's name and description.
	UpdateConcept(ctx context.Context, domainID, id uuid.UUID, in hierarchy.FieldsUpdate) (*domain.Concept, error)

	// SetStatus applies a review status transition.
	SetStatus(ctx context.Context, domainID, id uuid.UUID, status domain.ConceptStatus) (*domain.Concept, error)

	// BulkSetStatus applies status to every id and reports each outcome.
	BulkSetStatus(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID, status domain.ConceptStatus) ([]hierarchy.StatusResult, error)

	// CanReparent reports whether id may move under newParentID (nil for root).
	CanReparent(ctx context.Context, domainID, id uuid.UUID, newParentID *uuid.UUID) (bool, error)

	// Reparent moves id under newParentID (nil for root).
	Reparent(ctx context.Context, domainID, id uuid.UUID, newParentID *uuid.UUID) (*domain.Concept, error)

	// MoveUp swaps id with its previous sibling; false at the top.
	MoveUp(ctx context.Context, domainID, id uuid.UUID) (bool, error)

	// MoveDown swaps id with its next sibling; false at the bottom.
	MoveDown(ctx context.Context, domainID, id uuid.UUID) (bool, error)

	// Reorder puts orderedIDs first in the sibling group of parentID and renumbers it densely.
	Reorder(ctx context.Context, domainID uuid.UUID, parentID *uuid.UUID, orderedIDs []uuid.UUID) error

	// DeleteConcept removes a childless concept and drops its layout state.
	DeleteConcept(ctx context.Context, domainID, id uuid.UUID) error

	// Layout computes the radial layout and overlays the position overrides.
	Layout(ctx context.Context, domainID uuid.UUID) (*MindMap, error)

	// Drag records an in-progress move of a node.
	Drag(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error

	// DragEnd records the final position of a move and schedules its save.
	DragEnd(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error

	// SavePositions persists the given positions immediately.
	SavePositions(ctx context.Context, domainID uuid.UUID, positions map[uuid.UUID]domain.Position) ([]layout.SaveResult, error)

	// ResetLayout clears the overrides of ids, or of every concept when ids is empty.
	ResetLayout(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) error

	// Close stops every session, cancelling scheduled position saves.
	Close(ctx context.Context) error
}

// session is the single owner of one domain. mu serializes every repository
// access; the coordinator guards itself.
type session struct {
	mu    sync.Mutex
	repo  *hierarchy.Repository
	coord *layout.Coordinator
}

// Options configures a ConceptService.
type Options struct {
	Layout           layout.Config
	Debounce         time.Duration
	WriteConcurrency int
	WriteObserver    layout.WriteObserver
}

// DefaultOptions returns the standard engine settings.
func DefaultOptions() Options {
	return Options{
		Layout:           layout.DefaultConfig(),
		Debounce:         layout.DefaultDebounce,
		WriteConcurrency: hierarchy.DefaultWriteConcurrency,
	}
}

type conceptServiceImpl struct {
	store    store.ConceptStore
	notifier events.Notifier
	logger   *slog.Logger
	opts     Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	closed   bool
	loads    singleflight.Group
}

// NewConceptService creates a ConceptService over st.
// It returns an error if st is nil.
func NewConceptService(
	st store.ConceptStore,
	notifier events.Notifier,
	logger *slog.Logger,
	opts Options,
) (ConceptService, error) {
	if st == nil {
		return nil, &ConceptServiceError{
			Operation: "create_service",
			Message:   "store cannot be nil",
		}
	}
	if notifier == nil {
		notifier = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &conceptServiceImpl{
		store:    st,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "concept_service")),
		opts:     opts,
		sessions: make(map[uuid.UUID]*session),
	}, nil
}

// session returns the domain's session, loading it on first use. Concurrent
// first loads of a domain share one store read.
func (s *conceptServiceImpl) session(ctx context.Context, domainID uuid.UUID) (*session, error) {
	if domainID == uuid.Nil {
		return nil, ErrInvalidDomain
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	if sess, ok := s.sessions[domainID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	v, err, shared := s.loads.Do(domainID.String(), func() (any, error) {
		s.mu.Lock()
		if sess, ok := s.sessions[domainID]; ok {
			s.mu.Unlock()
			return sess, nil
		}
		s.mu.Unlock()

		sess, err := s.newSession(ctx, domainID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			_ = sess.coord.Close(context.Background())
			return nil, ErrServiceClosed
		}
		s.sessions[domainID] = sess
		return sess, nil
	})
	if err != nil {
		return nil, NewConceptServiceError(OpLoadSession, "failed to load domain", err)
	}
	if shared {
		logger.FromContextOrDefault(ctx, s.logger).Debug("shared concurrent domain load",
			slog.String("domain_id", domainID.String()))
	}
	return v.(*session), nil
}

func (s *conceptServiceImpl) newSession(ctx context.Context, domainID uuid.UUID) (*session, error) {
	repo := hierarchy.NewRepository(s.store, s.notifier, s.logger,
		hierarchy.WithWriteConcurrency(s.opts.WriteConcurrency))
	forest, err := repo.Load(ctx, domainID)
	if err != nil {
		return nil, err
	}

	coordOpts := []layout.CoordinatorOption{
		layout.WithDebounce(s.opts.Debounce),
		layout.WithWriteConcurrency(s.opts.WriteConcurrency),
	}
	if s.opts.WriteObserver != nil {
		coordOpts = append(coordOpts, layout.WithWriteObserver(s.opts.WriteObserver))
	}
	coord := layout.NewCoordinator(domainID, s.store, s.notifier, s.logger, coordOpts...)
	coord.Seed(forest.Concepts())

	logger.FromContextOrDefault(ctx, s.logger).Info("domain session opened",
		slog.String("domain_id", domainID.String()),
		slog.Int("concept_count", forest.Len()))
	return &session{repo: repo, coord: coord}, nil
}

// withSession runs fn holding the domain's session lock.
func withSession[T any](
	ctx context.Context,
	s *conceptServiceImpl,
	domainID uuid.UUID,
	fn func(sess *session) (T, error),
) (T, error) {
	var zero T
	sess, err := s.session(ctx, domainID)
	if err != nil {
		return zero, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *conceptServiceImpl) Concepts(ctx context.Context, domainID uuid.UUID) ([]*domain.Concept, error) {
	return withSession(ctx, s, domainID, func(sess *session) ([]*domain.Concept, error) {
		forest, err := sess.repo.Forest()
		if err != nil {
			return nil, err
		}
		return forest.Concepts(), nil
	})
}

func (s *conceptServiceImpl) Tree(ctx context.Context, domainID uuid.UUID) ([]*hierarchy.Node, error) {
	return withSession(ctx, s, domainID, func(sess *session) ([]*hierarchy.Node, error) {
		forest, err := sess.repo.Forest()
		if err != nil {
			return nil, err
		}
		return forest.Tree(), nil
	})
}

func (s *conceptServiceImpl) Refresh(ctx context.Context, domainID uuid.UUID) error {
	_, err := withSession(ctx, s, domainID, func(sess *session) (struct{}, error) {
		forest, err := sess.repo.Load(ctx, domainID)
		if err != nil {
			return struct{}{}, NewConceptServiceError(OpRefresh, "failed to reload domain", err)
		}
		sess.coord.Seed(forest.Concepts())
		return struct{}{}, nil
	})
	return err
}

func (s *conceptServiceImpl) CreateConcept(
	ctx context.Context,
	domainID uuid.UUID,
	in hierarchy.NewConceptFields,
) (*domain.Concept, error) {
	return withSession(ctx, s, domainID, func(sess *session) (*domain.Concept, error) {
		return sess.repo.Create(ctx, in)
	})
}

func (s *conceptServiceImpl) UpdateConcept(
	ctx context.Context,
	domainID, id uuid.UUID,
	in hierarchy.FieldsUpdate,
) (*domain.Concept, error) {
	return withSession(ctx, s, domainID, func(sess *session) (*domain.Concept, error) {
		return sess.repo.UpdateFields(ctx, id, in)
	})
}

func (s *conceptServiceImpl) SetStatus(
	ctx context.Context,
	domainID, id uuid.UUID,
	status domain.ConceptStatus,
) (*domain.Concept, error) {
	return withSession(ctx, s, domainID, func(sess *session) (*domain.Concept, error) {
		return sess.repo.SetStatus(ctx, id, status)
	})
}

func (s *conceptServiceImpl) BulkSetStatus(
	ctx context.Context,
	domainID uuid.UUID,
	ids []uuid.UUID,
	status domain.ConceptStatus,
) ([]hierarchy.StatusResult, error) {
	return withSession(ctx, s, domainID, func(sess *session) ([]hierarchy.StatusResult, error) {
		return sess.repo.BulkSetStatus(ctx, ids, status), nil
	})
}

func (s *conceptServiceImpl) CanReparent(
	ctx context.Context,
	domainID, id uuid.UUID,
	newParentID *uuid.UUID,
) (bool, error) {
	return withSession(ctx, s, domainID, func(sess *session) (bool, error) {
		return sess.repo.CanReparent(id, newParentID), nil
	})
}

func (s *conceptServiceImpl) Reparent(
	ctx context.Context,
	domainID, id uuid.UUID,
	newParentID *uuid.UUID,
) (*domain.Concept, error) {
	return withSession(ctx, s, domainID, func(sess *session) (*domain.Concept, error) {
		return sess.repo.Reparent(ctx, id, newParentID)
	})
}

func (s *conceptServiceImpl) MoveUp(ctx context.Context, domainID, id uuid.UUID) (bool, error) {
	return withSession(ctx, s, domainID, func(sess *session) (bool, error) {
		return sess.repo.MoveUp(ctx, id)
	})
}

func (s *conceptServiceImpl) MoveDown(ctx context.Context, domainID, id uuid.UUID) (bool, error) {
	return withSession(ctx, s, domainID, func(sess *session) (bool, error) {
		return sess.repo.MoveDown(ctx, id)
	})
}

func (s *conceptServiceImpl) Reorder(
	ctx context.Context,
	domainID uuid.UUID,
	parentID *uuid.UUID,
	orderedIDs []uuid.UUID,
) error {
	_, err := withSession(ctx, s, domainID, func(sess *session) (struct{}, error) {
		return struct{}{}, sess.repo.Renormalize(ctx, parentID, orderedIDs)
	})
	return err
}

func (s *conceptServiceImpl) DeleteConcept(ctx context.Context, domainID, id uuid.UUID) error {
	_, err := withSession(ctx, s, domainID, func(sess *session) (struct{}, error) {
		if err := sess.repo.Delete(ctx, id); err != nil {
			return struct{}{}, err
		}
		sess.coord.Forget(id)
		return struct{}{}, nil
	})
	return err
}

func (s *conceptServiceImpl) Layout(ctx context.Context, domainID uuid.UUID) (*MindMap, error) {
	return withSession(ctx, s, domainID, func(sess *session) (*MindMap, error) {
		forest, err := sess.repo.Forest()
		if err != nil {
			return nil, err
		}
		concepts := forest.Concepts()
		computed := layout.Compute(concepts, s.opts.Layout)
		positions := sess.coord.Merge(computed.Positions)

		nodes := make([]MindMapNode, 0, len(concepts))
		for _, c := range concepts {
			_, overridden := sess.coord.Override(c.ID)
			nodes = append(nodes, MindMapNode{
				Concept:    c,
				Position:   positions[c.ID],
				Level:      computed.Levels[c.ID],
				State:      sess.coord.State(c.ID),
				Overridden: overridden,
			})
		}
		edges := computed.Edges
		if edges == nil {
			edges = []layout.Edge{}
		}
		return &MindMap{DomainID: domainID, Nodes: nodes, Edges: edges}, nil
	})
}

func (s *conceptServiceImpl) Drag(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error {
	return s.drag(ctx, domainID, id, pos, false)
}

func (s *conceptServiceImpl) DragEnd(ctx context.Context, domainID, id uuid.UUID, pos domain.Position) error {
	return s.drag(ctx, domainID, id, pos, true)
}

func (s *conceptServiceImpl) drag(ctx context.Context, domainID, id uuid.UUID, pos domain.Position, end bool) error {
	_, err := withSession(ctx, s, domainID, func(sess *session) (struct{}, error) {
		if err := s.requireConcept(sess, OpDrag, id); err != nil {
			return struct{}{}, err
		}
		if !pos.IsFinite() {
			return struct{}{}, &hierarchy.Error{Op: OpDrag, ID: id, Kind: hierarchy.ErrValidation, Err: domain.ErrInvalidPosition}
		}
		if end {
			return struct{}{}, sess.coord.DragEnd(id, pos)
		}
		return struct{}{}, sess.coord.Drag(id, pos)
	})
	return err
}

func (s *conceptServiceImpl) SavePositions(
	ctx context.Context,
	domainID uuid.UUID,
	positions map[uuid.UUID]domain.Position,
) ([]layout.SaveResult, error) {
	sess, err := s.session(ctx, domainID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	forest, err := sess.repo.Forest()
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	known := make(map[uuid.UUID]domain.Position, len(positions))
	var unknown []layout.SaveResult
	for id, pos := range positions {
		if forest.Contains(id) {
			known[id] = pos
			continue
		}
		unknown = append(unknown, layout.SaveResult{
			ID:  id,
			Err: &hierarchy.Error{Op: OpSavePositions, ID: id, Kind: hierarchy.ErrNotFound},
		})
	}
	sess.mu.Unlock()

	// Writes run outside the session lock; the coordinator serializes its own state.
	results := sess.coord.SaveAllPositions(ctx, known)
	return append(results, unknown...), nil
}

func (s *conceptServiceImpl) ResetLayout(ctx context.Context, domainID uuid.UUID, ids []uuid.UUID) error {
	sess, err := s.session(ctx, domainID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	forest, err := sess.repo.Forest()
	if err != nil {
		sess.mu.Unlock()
		return err
	}
	targets := make([]uuid.UUID, 0, len(ids))
	if len(ids) == 0 {
		for _, c := range forest.Concepts() {
			if c.LayoutPosition != nil {
				targets = append(targets, c.ID)
			}
		}
	} else {
		for _, id := range ids {
			if !forest.Contains(id) {
				sess.mu.Unlock()
				return &hierarchy.Error{Op: OpResetLayout, ID: id, Kind: hierarchy.ErrNotFound}
			}
			targets = append(targets, id)
		}
	}
	sess.mu.Unlock()

	return sess.coord.ResetLayout(ctx, targets)
}

func (s *conceptServiceImpl) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = map[uuid.UUID]*session{}
	s.mu.Unlock()

	var firstErr error
	for _, sess := range sessions {
		if err := sess.coord.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.logger.Info("concept service closed", slog.Int("sessions", len(sessions)))
	return firstErr
}

func (s *conceptServiceImpl) requireConcept(sess *session, op string, id uuid.UUID) error {
	forest, err := sess.repo.Forest()
	if err != nil {
		return err
	}
	if !forest.Contains(id) {
		return &hierarchy.Error{Op: op, ID: id, Kind: hierarchy.ErrNotFound}
	}
	return nil
}
