package possync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"flowchart/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter records updates; when gate is set each write waits on it
type fakeWriter struct {
	mu      sync.Mutex
	updates []domain.PositionUpdate
	err     error
	gate    chan struct{}
}

func (w *fakeWriter) UpdateNodePosition(ctx context.Context, upd domain.PositionUpdate) error {
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates = append(w.updates, upd)
	return w.err
}

func (w *fakeWriter) recorded() []domain.PositionUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.PositionUpdate(nil), w.updates...)
}

func abcGraph(bPos domain.Position) *domain.Graph {
	return domain.NewGraph(domain.Flowchart{ID: "f1"}, []domain.Node{
		domain.NewNode("A", domain.NodeKindStart, "Start", domain.Position{X: 0, Y: 0}),
		domain.NewNode("B", domain.NodeKindDefault, "Work", bPos),
		domain.NewNode("C", domain.NodeKindEnd, "Done", domain.Position{X: 200, Y: 0}),
	}, nil)
}

func TestDragStoppedSendsOnlyTheMovedNode(t *testing.T) {
	w := &fakeWriter{}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{X: 100}), time.Now())

	err := <-s.DragStopped(context.Background(), "B", domain.Position{X: 40, Y: 77})
	require.NoError(t, err)

	assert.Equal(t, []domain.PositionUpdate{
		{NodeID: "B", Position: domain.Position{X: 40, Y: 77}},
	}, w.recorded())

	pos, _ := s.Position("A")
	assert.Equal(t, domain.Position{X: 0, Y: 0}, pos, "other nodes untouched")
}

func TestDragStoppedIsOptimistic(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{})}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{X: 100}), time.Now())

	result := s.DragStopped(context.Background(), "B", domain.Position{X: 40, Y: 77})

	pos, ok := s.Position("B")
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 40, Y: 77}, pos, "view updated before the write finishes")
	assert.Empty(t, w.recorded())

	close(w.gate)
	assert.NoError(t, <-result)
	s.Wait()
}

func TestDragStoppedFailureKeepsLocalPosition(t *testing.T) {
	w := &fakeWriter{err: errors.New("store down")}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{X: 100}), time.Now())

	err := <-s.DragStopped(context.Background(), "B", domain.Position{X: 40, Y: 77})
	require.Error(t, err)

	pos, _ := s.Position("B")
	assert.Equal(t, domain.Position{X: 40, Y: 77}, pos, "no rollback")
	assert.Len(t, w.recorded(), 1, "no retry")

	t.Run("next snapshot overwrites the failed move", func(t *testing.T) {
		s.Load(abcGraph(domain.Position{X: 100}), time.Now())
		pos, _ := s.Position("B")
		assert.Equal(t, domain.Position{X: 100}, pos)
		assert.Equal(t, 0, s.Pending())
	})
}

func TestDragStoppedUnknownNode(t *testing.T) {
	w := &fakeWriter{}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{}), time.Now())

	err := <-s.DragStopped(context.Background(), "ghost", domain.Position{X: 1})
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Empty(t, w.recorded())
}

func TestResultChannelClosesAfterOneValue(t *testing.T) {
	s := New(&fakeWriter{}, nil)
	s.Load(abcGraph(domain.Position{}), time.Now())

	ch := s.DragStopped(context.Background(), "C", domain.Position{X: 5})
	_, ok := <-ch
	require.True(t, ok)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestLoadReappliesInFlightMoves(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{})}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{X: 100}), time.Now())

	result := s.DragStopped(context.Background(), "B", domain.Position{X: 40, Y: 77})

	// A refetch lands while the write is still in flight
	s.Load(abcGraph(domain.Position{X: 100}), time.Now())
	pos, _ := s.Position("B")
	assert.Equal(t, domain.Position{X: 40, Y: 77}, pos)
	assert.Equal(t, 1, s.Pending())

	close(w.gate)
	require.NoError(t, <-result)

	t.Run("confirmed snapshot clears the overlay", func(t *testing.T) {
		s.Load(abcGraph(domain.Position{X: 40, Y: 77}), time.Now())
		assert.Equal(t, 0, s.Pending())
	})
}

func TestLoadAfterCompletedWriteLetsStoreWin(t *testing.T) {
	now := time.Unix(1000, 0)
	s := New(&fakeWriter{}, nil)
	s.now = func() time.Time { return now }
	s.Load(abcGraph(domain.Position{X: 100}), now)

	require.NoError(t, <-s.DragStopped(context.Background(), "B", domain.Position{X: 40, Y: 77}))

	t.Run("stale snapshot requested before completion keeps overlay", func(t *testing.T) {
		s.Load(abcGraph(domain.Position{X: 100}), now.Add(-time.Second))
		pos, _ := s.Position("B")
		assert.Equal(t, domain.Position{X: 40, Y: 77}, pos)
	})

	t.Run("snapshot requested afterwards wins", func(t *testing.T) {
		s.Load(abcGraph(domain.Position{X: 5, Y: 5}), now.Add(time.Second))
		pos, _ := s.Position("B")
		assert.Equal(t, domain.Position{X: 5, Y: 5}, pos)
		assert.Equal(t, 0, s.Pending())
	})
}

func TestLoadDropsMovesOfRemovedNodes(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{})}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{}), time.Now())

	result := s.DragStopped(context.Background(), "C", domain.Position{X: 9})
	s.Load(domain.NewGraph(domain.Flowchart{ID: "f1"}, nil, nil), time.Now())

	_, ok := s.Position("C")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Pending())

	close(w.gate)
	<-result
}

func TestNewerDragSupersedesOlder(t *testing.T) {
	w := &fakeWriter{gate: make(chan struct{})}
	s := New(w, nil)
	s.Load(abcGraph(domain.Position{}), time.Now())

	first := s.DragStopped(context.Background(), "B", domain.Position{X: 1})
	second := s.DragStopped(context.Background(), "B", domain.Position{X: 2})

	// the first write reports back while the second is still blocked
	s.complete("B", 1, nil)

	s.Load(abcGraph(domain.Position{}), time.Now().Add(time.Hour))
	pos, _ := s.Position("B")
	assert.Equal(t, domain.Position{X: 2}, pos, "second move still in flight")

	close(w.gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	s.Wait()
}

func TestPositionsCopy(t *testing.T) {
	s := New(&fakeWriter{}, nil)
	s.Load(abcGraph(domain.Position{X: 3}), time.Now())

	ps := s.Positions()
	ps["B"] = domain.Position{X: 99}

	pos, _ := s.Position("B")
	assert.Equal(t, domain.Position{X: 3}, pos)
}
