package layout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-concepts/internal/domain"
	"github.com/phrazzld/scry-concepts/internal/events"
	"github.com/phrazzld/scry-concepts/internal/hierarchy"
	"github.com/phrazzld/scry-concepts/internal/platform/logger"
	"github.com/phrazzld/scry-concepts/internal/store"
	"golang.org/x/sync/errgroup"
)

// Coordinator operation names.
const (
	OpSavePosition = "save_position"
	OpSaveLayout   = "save_layout"
	OpResetLayout  = "reset_layout"
)

// DefaultDebounce is the quiet period after a drag ends before the position is written.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by a Coordinator after Close.
var ErrClosed = errors.New("layout coordinator closed")

// WriteObserver is told about every position write the coordinator makes.
type WriteObserver func(op string, err error)

// SaveResult is the outcome of one position write of SaveAllPositions.
type SaveResult struct {
	ID  uuid.UUID
	Err error
}

type node struct {
	state    NodeState
	override *domain.Position
	timer    *time.Timer
	// generation invalidates timers and writes started for an earlier drag.
	generation uint64
}

// Coordinator tracks override positions for one domain and persists them.
// It is safe for concurrent use; debounce timers fire on their own goroutines.
type Coordinator struct {
	domainID         uuid.UUID
	store            store.ConceptStore
	notifier         events.Notifier
	logger           *slog.Logger
	debounce         time.Duration
	writeConcurrency int
	observe          WriteObserver

	// ctx outlives individual requests; timer-fired writes run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	nodes map[uuid.UUID]*node
	// inflight holds the done channel of the latest position write per node.
	// Every write waits for its predecessor, so writes of one node land in
	// the order they were started.
	inflight map[uuid.UUID]chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithDebounce sets the delay between a drag ending and the position write.
func WithDebounce(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithWriteConcurrency bounds the parallel writes of bulk operations.
func WithWriteConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.writeConcurrency = n
		}
	}
}

// WithWriteObserver registers a callback for every position write.
func WithWriteObserver(fn WriteObserver) CoordinatorOption {
	return func(c *Coordinator) {
		c.observe = fn
	}
}

// NewCoordinator creates a Coordinator for domainID.
func NewCoordinator(
	domainID uuid.UUID,
	st store.ConceptStore,
	notifier events.Notifier,
	logger *slog.Logger,
	opts ...CoordinatorOption,
) *Coordinator {
	if notifier == nil {
		notifier = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		domainID:         domainID,
		store:            st,
		notifier:         notifier,
		logger:           logger.With("component", "layout_coordinator", "domain_id", domainID),
		debounce:         DefaultDebounce,
		writeConcurrency: hierarchy.DefaultWriteConcurrency,
		observe:          func(string, error) {},
		ctx:              ctx,
		cancel:           cancel,
		nodes:            make(map[uuid.UUID]*node),
		inflight:         make(map[uuid.UUID]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed records the persisted overrides of freshly loaded concepts. Nodes with
// unsaved local changes keep them.
func (c *Coordinator) Seed(concepts []*domain.Concept) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, concept := range concepts {
		n := c.nodes[concept.ID]
		if n != nil && (n.state == StateDragging || n.state == StatePendingSave) {
			continue
		}
		if concept.LayoutPosition == nil {
			if n != nil {
				delete(c.nodes, concept.ID)
			}
			continue
		}
		pos := *concept.LayoutPosition
		if n == nil {
			n = &node{}
			c.nodes[concept.ID] = n
		}
		n.state = StateSaved
		n.override = &pos
	}
}

// State returns the node's lifecycle state.
func (c *Coordinator) State(id uuid.UUID) NodeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.nodes[id]; n != nil {
		return n.state
	}
	return StateComputed
}

// States returns the state of every node that is not StateComputed.
func (c *Coordinator) States() map[uuid.UUID]NodeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]NodeState, len(c.nodes))
	for id, n := range c.nodes {
		out[id] = n.state
	}
	return out
}

// Override returns the node's override position, if it has one.
func (c *Coordinator) Override(id uuid.UUID) (domain.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.nodes[id]; n != nil && n.override != nil {
		return *n.override, true
	}
	return domain.Position{}, false
}

// Merge overlays overrides on computed positions. Only ids present in
// computed appear in the result.
func (c *Coordinator) Merge(computed map[uuid.UUID]domain.Position) map[uuid.UUID]domain.Position {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[uuid.UUID]domain.Position, len(computed))
	for id, pos := range computed {
		if n := c.nodes[id]; n != nil && n.override != nil {
			pos = *n.override
		}
		out[id] = pos
	}
	return out
}

// Drag records an in-progress move. Any scheduled save for the node is cancelled.
func (c *Coordinator) Drag(id uuid.UUID, pos domain.Position) error {
	if !pos.IsFinite() {
		return domain.ErrInvalidPosition
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	n := c.nodeLocked(id)
	c.stopTimerLocked(n)
	n.generation++
	n.state = StateDragging
	n.override = &pos
	return nil
}

// DragEnd records the final position of a move and schedules its write after
// the debounce delay, replacing any write already scheduled for the node.
func (c *Coordinator) DragEnd(id uuid.UUID, pos domain.Position) error {
	if !pos.IsFinite() {
		return domain.ErrInvalidPosition
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	n := c.nodeLocked(id)
	c.stopTimerLocked(n)
	n.generation++
	n.state = StatePendingSave
	n.override = &pos

	generation := n.generation
	c.wg.Add(1)
	n.timer = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()
		c.fire(id, generation)
	})
	return nil
}

// fire writes a debounced position unless the drag it belongs to was superseded.
func (c *Coordinator) fire(id uuid.UUID, generation uint64) {
	c.mu.Lock()
	n := c.nodes[id]
	if n == nil || n.generation != generation || n.state != StatePendingSave || n.override == nil {
		c.mu.Unlock()
		return
	}
	n.timer = nil
	pos := *n.override
	prev, done := c.beginWriteLocked(id)
	c.mu.Unlock()

	if prev != nil {
		<-prev
	}
	_, err := c.store.Update(c.ctx, id, domain.ConceptUpdate{LayoutPosition: domain.Set(pos)})
	c.endWrite(id, done)
	c.observe(OpSavePosition, err)

	c.mu.Lock()
	current := c.nodes[id] == n && n.generation == generation
	if current && err == nil {
		n.state = StateSaved
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("failed to save position", "concept_id", id, "error", err)
		c.notify(c.ctx, events.Failure(OpSavePosition,
			"Could not save mindmap position: "+err.Error(), c.domainID, id))
		return
	}
	if current {
		c.notify(c.ctx, events.Success(OpSavePosition,
			"Mindmap position has been saved successfully.", c.domainID, id).WithTitle("Position Saved"))
	}
}

// SaveAllPositions writes every given position now, bypassing the debounce.
// Each write is independent; results are ordered by id.
func (c *Coordinator) SaveAllPositions(ctx context.Context, positions map[uuid.UUID]domain.Position) []SaveResult {
	ids := make([]uuid.UUID, 0, len(positions))
	for id := range positions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })

	results := make([]SaveResult, len(ids))
	generations := make([]uint64, len(ids))
	prevs := make([]chan struct{}, len(ids))
	dones := make([]chan struct{}, len(ids))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		for i, id := range ids {
			results[i] = SaveResult{ID: id, Err: ErrClosed}
		}
		return results
	}
	for i, id := range ids {
		results[i].ID = id
		pos := positions[id]
		if !pos.IsFinite() {
			results[i].Err = domain.ErrInvalidPosition
			continue
		}
		n := c.nodeLocked(id)
		c.stopTimerLocked(n)
		n.generation++
		n.state = StatePendingSave
		n.override = &pos
		generations[i] = n.generation
		prevs[i], dones[i] = c.beginWriteLocked(id)
	}
	c.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(c.writeConcurrency)
	for i, id := range ids {
		if results[i].Err != nil {
			continue
		}
		g.Go(func() error {
			if err := waitWrite(ctx, prevs[i]); err != nil {
				results[i].Err = classify(OpSaveLayout, id, err)
				c.endWriteAfter(id, prevs[i], dones[i])
				return nil
			}
			defer c.endWrite(id, dones[i])
			_, err := c.store.Update(ctx, id, domain.ConceptUpdate{LayoutPosition: domain.Set(positions[id])})
			c.observe(OpSaveLayout, err)
			if err != nil {
				results[i].Err = classify(OpSaveLayout, id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	saved, failed := 0, []uuid.UUID(nil)
	c.mu.Lock()
	for i, r := range results {
		if r.Err != nil {
			failed = append(failed, r.ID)
			continue
		}
		saved++
		if n := c.nodes[r.ID]; n != nil && n.generation == generations[i] {
			n.state = StateSaved
		}
	}
	c.mu.Unlock()

	log := logger.FromContextOrDefault(ctx, c.logger)
	if len(failed) > 0 {
		log.Warn("layout partially saved", "saved", saved, "failed", len(failed))
		c.notify(ctx, events.Failure(OpSaveLayout,
			fmt.Sprintf("Could not save %d mindmap positions", len(failed)), c.domainID, failed...))
	}
	if saved > 0 {
		c.notify(ctx, events.Success(OpSaveLayout,
			fmt.Sprintf("%d mindmap positions saved", saved), c.domainID).WithTitle("Layout Saved"))
	}
	return results
}

// ResetLayout cancels pending writes and clears the stored override of every
// given id and every node the coordinator tracks. Nodes whose clear failed
// keep their override; the failures are returned joined.
func (c *Coordinator) ResetLayout(ctx context.Context, ids []uuid.UUID) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	targets := make(map[uuid.UUID]uint64, len(ids)+len(c.nodes))
	for _, id := range ids {
		targets[id] = 0
	}
	for id, n := range c.nodes {
		c.stopTimerLocked(n)
		n.generation++
		targets[id] = n.generation
	}
	order := make([]uuid.UUID, 0, len(targets))
	for id := range targets {
		order = append(order, id)
	}
	// Clears queue behind writes already running so a save started before
	// the reset cannot bring its position back afterwards.
	prevs := make([]chan struct{}, len(order))
	dones := make([]chan struct{}, len(order))
	for i, id := range order {
		prevs[i], dones[i] = c.beginWriteLocked(id)
	}
	c.mu.Unlock()

	errs := make([]error, len(order))

	var g errgroup.Group
	g.SetLimit(c.writeConcurrency)
	for i, id := range order {
		g.Go(func() error {
			if err := waitWrite(ctx, prevs[i]); err != nil {
				errs[i] = classify(OpResetLayout, id, err)
				c.endWriteAfter(id, prevs[i], dones[i])
				return nil
			}
			defer c.endWrite(id, dones[i])
			_, err := c.store.Update(ctx, id, domain.ConceptUpdate{LayoutPosition: domain.Clear[domain.Position]()})
			c.observe(OpResetLayout, err)
			// A concept deleted elsewhere has nothing left to clear.
			if err != nil && !store.IsNotFoundError(err) {
				errs[i] = classify(OpResetLayout, id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	for i, id := range order {
		n := c.nodes[id]
		if n == nil || n.generation != targets[id] {
			continue
		}
		if errs[i] == nil {
			delete(c.nodes, id)
		}
	}
	c.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		logger.FromContextOrDefault(ctx, c.logger).Error("failed to reset layout", "error", err)
		c.notify(ctx, events.Failure(OpResetLayout, "Failed to reset mindmap layout", c.domainID))
		return err
	}
	c.notify(ctx, events.Success(OpResetLayout, "Mindmap layout reset successfully", c.domainID))
	return nil
}

// Forget cancels any scheduled write for id and drops its state.
func (c *Coordinator) Forget(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.nodes[id]; n != nil {
		c.stopTimerLocked(n)
		n.generation++
		delete(c.nodes, id)
	}
}

// Close cancels every scheduled write and waits for writes already running.
// Unsaved positions are dropped.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		for _, n := range c.nodes {
			c.stopTimerLocked(n)
			n.generation++
		}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	defer c.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginWriteLocked registers a position write for id. The returned prev is
// the write it must wait for, or nil; done must be passed to endWrite.
func (c *Coordinator) beginWriteLocked(id uuid.UUID) (prev, done chan struct{}) {
	prev = c.inflight[id]
	done = make(chan struct{})
	c.inflight[id] = done
	return prev, done
}

func (c *Coordinator) endWrite(id uuid.UUID, done chan struct{}) {
	c.mu.Lock()
	if c.inflight[id] == done {
		delete(c.inflight, id)
	}
	c.mu.Unlock()
	close(done)
}

// endWriteAfter releases done once prev has finished, keeping later writes
// of the node behind a write this caller gave up waiting for.
func (c *Coordinator) endWriteAfter(id uuid.UUID, prev, done chan struct{}) {
	go func() {
		<-prev
		c.endWrite(id, done)
	}()
}

// waitWrite blocks until prev has finished or ctx is done.
func waitWrite(ctx context.Context, prev chan struct{}) error {
	if prev == nil {
		return nil
	}
	select {
	case <-prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) nodeLocked(id uuid.UUID) *node {
	n := c.nodes[id]
	if n == nil {
		n = &node{}
		c.nodes[id] = n
	}
	return n
}

// stopTimerLocked cancels a scheduled write. A timer that already fired
// releases the wait group itself.
func (c *Coordinator) stopTimerLocked(n *node) {
	if n.timer == nil {
		return
	}
	if n.timer.Stop() {
		c.wg.Done()
	}
	n.timer = nil
}

func (c *Coordinator) notify(ctx context.Context, n events.Notification) {
	if err := c.notifier.Notify(ctx, n); err != nil {
		c.logger.Warn("notification delivery failed", "op", n.Operation, "error", err)
	}
}

func classify(op string, id uuid.UUID, err error) error {
	kind := hierarchy.ErrStoreUnavailable
	if store.IsNotFoundError(err) {
		kind = hierarchy.ErrNotFound
	}
	return &hierarchy.Error{Op: op, ID: id, Kind: kind, Err: err}
}
