// Package controller drives the flowchart list: fetching, the append
// dialog and node drags. It is the only core component that talks to the
// store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flowchart/internal/domain"
	"flowchart/internal/planner"
	"flowchart/internal/possync"
	"flowchart/internal/render"

	"go.uber.org/zap"
)

// LoadErrorMessage is shown instead of the list when a fetch fails
const LoadErrorMessage = "Failed to load flowcharts."

var (
	// ErrNoFlowchart is returned for flowchart ids missing from the snapshot
	ErrNoFlowchart = errors.New("flowchart not found")
	// ErrDialogState is returned for dialog actions not allowed in the
	// current dialog state
	ErrDialogState = errors.New("invalid dialog state")
)

// Store is the subset of the store API the controller needs
type Store interface {
	ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error)
	Append(ctx context.Context, payload domain.AppendPayload) error
	UpdateNodePosition(ctx context.Context, upd domain.PositionUpdate) error
}

// ListState is the state of the flowchart list
type ListState int

const (
	ListLoading ListState = iota
	ListError
	ListReady
)

func (s ListState) String() string {
	switch s {
	case ListLoading:
		return "loading"
	case ListError:
		return "error"
	case ListReady:
		return "ready"
	}
	return fmt.Sprintf("ListState(%d)", int(s))
}

// Controller holds the current snapshot and the UI-facing state around it
type Controller struct {
	store   Store
	planner *planner.Planner
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	state     ListState
	snapshot  *domain.Snapshot
	requested uint64
	syncs     map[string]*possync.Sync
	dialog    dialog
}

// Option configures a Controller
type Option func(*Controller)

// WithPlanner replaces the default planner
func WithPlanner(p *planner.Planner) Option {
	return func(c *Controller) { c.planner = p }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// New creates a controller in the loading state; call Refresh to fetch
func New(store Store, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		state:  ListLoading,
		syncs:  make(map[string]*possync.Sync),
		dialog: newDialog(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.planner == nil {
		c.planner = planner.New()
	}
	return c
}

// Refresh fetches every flowchart and replaces the snapshot. Responses
// older than the snapshot already shown are discarded, failures included.
// On failure the list enters ListError and the previous snapshot is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.requested++
	version := c.requested
	if c.snapshot == nil {
		c.state = ListLoading
	}
	c.mu.Unlock()

	requestedAt := c.now()
	list, err := c.store.ListFlowcharts(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && version < c.snapshot.Version {
		c.logger.Debug("Discarding stale flowchart list",
			zap.Uint64("version", version),
			zap.Uint64("current", c.snapshot.Version),
			zap.Error(err),
		)
		return nil
	}

	if err != nil {
		c.logger.Error("Error fetching flowcharts", zap.Error(err))
		c.state = ListError
		return fmt.Errorf("refresh: %w", err)
	}

	c.snapshot = domain.NewSnapshot(version, requestedAt, list)
	c.state = ListReady
	c.reconcileLocked()
	return nil
}

// reconcileLocked loads the new snapshot into each flowchart's position sync
func (c *Controller) reconcileLocked() {
	syncs := make(map[string]*possync.Sync, len(c.snapshot.Graphs))
	for _, g := range c.snapshot.Graphs {
		s, ok := c.syncs[g.Flowchart.ID]
		if !ok {
			s = possync.New(c.store, c.logger.With(zap.String("flowchart_id", g.Flowchart.ID)))
		}
		s.Load(g, c.snapshot.RequestedAt)
		syncs[g.Flowchart.ID] = s
	}
	c.syncs = syncs
}

// State returns the list state and, in ListError, the message to show
func (c *Controller) State() (ListState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ListError {
		return c.state, LoadErrorMessage
	}
	return c.state, ""
}

// Snapshot returns the current snapshot, nil before the first fetch
func (c *Controller) Snapshot() *domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Views returns display graphs for every flowchart with local drag
// positions applied
func (c *Controller) Views() []*render.DisplayGraph {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return nil
	}
	views := make([]*render.DisplayGraph, 0, len(c.snapshot.Graphs))
	for _, g := range c.snapshot.Graphs {
		views = append(views, c.viewLocked(g))
	}
	return views
}

// View returns the display graph of one flowchart
func (c *Controller) View(flowchartID string) (*render.DisplayGraph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.snapshot.Graph(flowchartID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFlowchart, flowchartID)
	}
	return c.viewLocked(g), nil
}

func (c *Controller) viewLocked(g *domain.Graph) *render.DisplayGraph {
	dg := render.Derive(g)
	if s, ok := c.syncs[g.Flowchart.ID]; ok {
		for id, pos := range s.Positions() {
			dg.MoveNode(id, pos)
		}
	}
	return dg
}

// DragStopped records a node's final position and persists it in the
// background. The channel receives the outcome once.
func (c *Controller) DragStopped(ctx context.Context, flowchartID, nodeID string, pos domain.Position) <-chan error {
	c.mu.Lock()
	s, ok := c.syncs[flowchartID]
	c.mu.Unlock()

	if !ok {
		result := make(chan error, 1)
		result <- fmt.Errorf("%w: %s", ErrNoFlowchart, flowchartID)
		close(result)
		return result
	}
	return s.DragStopped(ctx, nodeID, pos)
}

// Wait blocks until all position writes started so far have finished
func (c *Controller) Wait() {
	c.mu.Lock()
	syncs := make([]*possync.Sync, 0, len(c.syncs))
	for _, s := range c.syncs {
		syncs = append(syncs, s)
	}
	c.mu.Unlock()

	for _, s := range syncs {
		s.Wait()
	}
}
