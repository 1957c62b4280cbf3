// Package possync persists interactively moved node positions.
//
// A drag-stop updates the local view at once and sends one asynchronous
// position update to the store. Failures are logged and reported on the
// returned channel; they are never retried or rolled back. Moves that have
// not been confirmed yet are kept as an overlay and re-applied when a new
// snapshot of the flowchart is loaded.
package possync

import (
	"context"
	"errors"
	"sync"
	"time"

	"flowchart/internal/domain"

	"go.uber.org/zap"
)

// ErrUnknownNode is returned for drags of nodes missing from the view
var ErrUnknownNode = errors.New("node not in view")

// Writer persists one node position
type Writer interface {
	UpdateNodePosition(ctx context.Context, upd domain.PositionUpdate) error
}

type moveState int

const (
	moveInFlight moveState = iota
	moveDone
	moveFailed
)

// pendingMove is a drag the store has not been seen to reflect yet
type pendingMove struct {
	seq         uint64
	pos         domain.Position
	state       moveState
	completedAt time.Time
}

// Sync tracks node positions of one rendered flowchart
type Sync struct {
	writer Writer
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	view    map[string]domain.Position
	pending map[string]*pendingMove
	seq     uint64

	wg sync.WaitGroup
}

// New creates a Sync with an empty view
func New(writer Writer, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{
		writer:  writer,
		logger:  logger,
		now:     time.Now,
		view:    make(map[string]domain.Position),
		pending: make(map[string]*pendingMove),
	}
}

// Load replaces the view with the positions of g, a snapshot requested at
// requestedAt, then reconciles pending moves against it:
//   - in flight: re-applied over the snapshot
//   - done: dropped once the snapshot shows it, or once the snapshot was
//     requested after the write completed
//   - failed: dropped, the snapshot wins
func (s *Sync) Load(g *domain.Graph, requestedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := make(map[string]domain.Position, g.Len())
	for _, n := range g.Nodes() {
		if _, seen := view[n.ID]; !seen {
			view[n.ID] = n.Position
		}
	}

	for id, mv := range s.pending {
		stored, exists := view[id]
		switch {
		case !exists:
			delete(s.pending, id)
		case mv.state == moveFailed:
			delete(s.pending, id)
		case mv.state == moveDone && (stored == mv.pos || !requestedAt.Before(mv.completedAt)):
			delete(s.pending, id)
		default:
			view[id] = mv.pos
		}
	}

	s.view = view
}

// Position returns the current local position of a node
func (s *Sync) Position(nodeID string) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.view[nodeID]
	return pos, ok
}

// Positions returns a copy of the local view
func (s *Sync) Positions() map[string]domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Position, len(s.view))
	for id, pos := range s.view {
		out[id] = pos
	}
	return out
}

// Pending returns how many moves are not yet reconciled
func (s *Sync) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// DragStopped records the final position of a moved node and sends it to
// the store in the background. The returned channel receives exactly one
// value, nil on success, and is then closed. Callers may ignore it.
func (s *Sync) DragStopped(ctx context.Context, nodeID string, pos domain.Position) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	if _, ok := s.view[nodeID]; !ok {
		s.mu.Unlock()
		result <- ErrUnknownNode
		close(result)
		return result
	}
	s.view[nodeID] = pos
	s.seq++
	mv := &pendingMove{seq: s.seq, pos: pos, state: moveInFlight}
	s.pending[nodeID] = mv
	s.mu.Unlock()

	upd := domain.PositionUpdate{NodeID: nodeID, Position: pos}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(result)

		err := s.writer.UpdateNodePosition(ctx, upd)
		s.complete(nodeID, mv.seq, err)
		if err != nil {
			s.logger.Warn("Failed to update node position",
				zap.String("node_id", nodeID),
				zap.Float64("x", pos.X),
				zap.Float64("y", pos.Y),
				zap.Error(err),
			)
		}
		result <- err
	}()

	return result
}

// complete marks a move finished unless a newer drag of the same node
// superseded it
func (s *Sync) complete(nodeID string, seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mv, ok := s.pending[nodeID]
	if !ok || mv.seq != seq {
		return
	}
	mv.completedAt = s.now()
	if err != nil {
		mv.state = moveFailed
	} else {
		mv.state = moveDone
	}
}

// Wait blocks until every position write has finished
func (s *Sync) Wait() {
	s.wg.Wait()
}
