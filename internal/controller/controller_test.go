package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"flowchart/internal/domain"
	"flowchart/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps flowcharts in memory and applies appends like the store
type fakeStore struct {
	mu        sync.Mutex
	list      []domain.FlowchartGraph
	listErr   error
	appendErr error
	listCalls int
	appends   []domain.AppendPayload
	moves     []domain.PositionUpdate
}

func (s *fakeStore) ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.FlowchartGraph, len(s.list))
	for i, fg := range s.list {
		out[i] = domain.FlowchartGraph{
			Flowchart: fg.Flowchart,
			Nodes:     append([]domain.Node(nil), fg.Nodes...),
			Edges:     append([]domain.Edge(nil), fg.Edges...),
		}
	}
	return out, nil
}

func (s *fakeStore) Append(ctx context.Context, p domain.AppendPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends = append(s.appends, p)
	for i := range s.list {
		if s.list[i].Flowchart.ID == p.FlowchartID {
			s.list[i].Nodes = append(s.list[i].Nodes, p.Nodes...)
			s.list[i].Edges = append(s.list[i].Edges, p.Edges...)
		}
	}
	return nil
}

func (s *fakeStore) UpdateNodePosition(ctx context.Context, upd domain.PositionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, upd)
	return nil
}

// gatedStore holds the first list call until release is closed, then
// fails it
type gatedStore struct {
	*fakeStore
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first {
		close(s.entered)
		<-s.release
		return nil, errors.New("timeout")
	}
	return s.fakeStore.ListFlowcharts(ctx)
}

func newStore() *fakeStore {
	return &fakeStore{list: []domain.FlowchartGraph{
		{
			Flowchart: domain.Flowchart{ID: "f1", Title: "Hiring"},
			Nodes: []domain.Node{
				domain.NewNode("A", domain.NodeKindStart, "Start", domain.Position{X: 0, Y: 0}),
				domain.NewNode("B", domain.NodeKindDefault, "", domain.Position{X: 100, Y: 0}),
				domain.NewNode("C", domain.NodeKindEnd, "Done", domain.Position{X: 200, Y: 0}),
			},
			Edges: []domain.Edge{domain.NewEdge("A", "B", "next"), domain.NewEdge("B", "C", "")},
		},
		{Flowchart: domain.Flowchart{ID: "empty"}},
	}}
}

func seqIDs(ids ...string) planner.IDSource {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func newController(t *testing.T, store *fakeStore) *Controller {
	t.Helper()
	c := New(store, WithPlanner(planner.New(planner.WithIDSource(seqIDs("n1", "n2", "n3")))))
	require.NoError(t, c.Refresh(context.Background()))
	return c
}

func TestRefresh(t *testing.T) {
	t.Run("starts loading", func(t *testing.T) {
		c := New(newStore())
		state, msg := c.State()
		assert.Equal(t, ListLoading, state)
		assert.Empty(t, msg)
		assert.Nil(t, c.Views())
	})

	t.Run("success builds views", func(t *testing.T) {
		c := newController(t, newStore())

		state, _ := c.State()
		assert.Equal(t, ListReady, state)

		views := c.Views()
		require.Len(t, views, 2)
		assert.Equal(t, "Hiring", views[0].Title)
		assert.Equal(t, "Untitled Flowchart", views[1].Title)
		assert.Equal(t, "No description provided.", views[1].Description)
		assert.True(t, views[1].Empty())
		assert.Equal(t, uint64(1), c.Snapshot().Version)
	})

	t.Run("failure shows generic message", func(t *testing.T) {
		store := newStore()
		store.listErr = errors.New("connection refused")
		c := New(store)

		err := c.Refresh(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, store.listErr)

		state, msg := c.State()
		assert.Equal(t, ListError, state)
		assert.Equal(t, LoadErrorMessage, msg)
	})

	t.Run("failure keeps previous snapshot", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)

		store.listErr = errors.New("down")
		require.Error(t, c.Refresh(context.Background()))
		assert.Len(t, c.Views(), 2)
	})

	t.Run("stale failure is dropped", func(t *testing.T) {
		store := &gatedStore{
			fakeStore: newStore(),
			entered:   make(chan struct{}),
			release:   make(chan struct{}),
		}
		c := New(store)

		first := make(chan error, 1)
		go func() { first <- c.Refresh(context.Background()) }()
		<-store.entered

		require.NoError(t, c.Refresh(context.Background()))
		close(store.release)
		require.NoError(t, <-first)

		state, msg := c.State()
		assert.Equal(t, ListReady, state)
		assert.Empty(t, msg)
		assert.Equal(t, uint64(2), c.Snapshot().Version)
		assert.Len(t, c.Views(), 2)
	})

	t.Run("versions increase", func(t *testing.T) {
		c := newController(t, newStore())
		require.NoError(t, c.Refresh(context.Background()))
		assert.Equal(t, uint64(2), c.Snapshot().Version)
	})
}

func TestDialog(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := newController(t, newStore())
		state, id := c.Dialog()
		assert.Equal(t, DialogClosed, state)
		assert.Empty(t, id)
		assert.Equal(t, Form{Label: "New Step", Kind: domain.NodeKindDefault, EdgeLabel: "next", Mode: domain.PositionEnd}, c.Form())
	})

	t.Run("open unknown flowchart", func(t *testing.T) {
		c := newController(t, newStore())
		assert.ErrorIs(t, c.OpenDialog("nope"), ErrNoFlowchart)
	})

	t.Run("set form needs an open dialog", func(t *testing.T) {
		c := newController(t, newStore())
		assert.ErrorIs(t, c.SetForm(DefaultForm()), ErrDialogState)
	})

	t.Run("open resets source and mode only", func(t *testing.T) {
		c := newController(t, newStore())
		require.NoError(t, c.OpenDialog("f1"))
		require.NoError(t, c.SetForm(Form{Label: "Sign", Kind: domain.NodeKindApproval, EdgeLabel: "ok", SourceID: "A", Mode: domain.PositionBoth}))

		require.NoError(t, c.OpenDialog("f1"))
		assert.Equal(t, Form{Label: "Sign", Kind: domain.NodeKindApproval, EdgeLabel: "ok", Mode: domain.PositionEnd}, c.Form())
	})

	t.Run("close resets everything", func(t *testing.T) {
		c := newController(t, newStore())
		require.NoError(t, c.OpenDialog("f1"))
		require.NoError(t, c.SetForm(Form{Label: "Sign", Mode: domain.PositionStart}))
		require.NoError(t, c.CloseDialog())

		state, _ := c.Dialog()
		assert.Equal(t, DialogClosed, state)
		assert.Equal(t, DefaultForm(), c.Form())
	})

	t.Run("source options fall back to id", func(t *testing.T) {
		c := newController(t, newStore())
		assert.Nil(t, c.SourceOptions())

		require.NoError(t, c.OpenDialog("f1"))
		assert.Equal(t, []SourceOption{
			{ID: "A", Label: "Start"},
			{ID: "B", Label: "B"},
			{ID: "C", Label: "Done"},
		}, c.SourceOptions())
	})
}

func TestSubmit(t *testing.T) {
	t.Run("end mode appends from last node and refetches", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("f1"))

		plan, err := c.Submit(context.Background())
		require.NoError(t, err)

		require.Len(t, store.appends, 1)
		p := store.appends[0]
		assert.Equal(t, "f1", p.FlowchartID)
		assert.Equal(t, domain.PositionEnd, p.PositionMode)
		require.Len(t, p.Nodes, 1)
		assert.Equal(t, "n1", p.Nodes[0].ID)
		assert.Equal(t, "New Step", p.Nodes[0].Label)
		assert.Equal(t, []domain.Edge{{ID: "C-n1", Source: "C", Target: "n1", Label: "next", Kind: domain.EdgeKindDefault}}, p.Edges)
		assert.Equal(t, plan.Node, p.Nodes[0])

		assert.Equal(t, 2, store.listCalls, "refetched after append")
		g, ok := c.Snapshot().Graph("f1")
		require.True(t, ok)
		assert.True(t, g.HasNode("n1"))

		state, _ := c.Dialog()
		assert.Equal(t, DialogClosed, state)
		assert.Equal(t, DefaultForm(), c.Form())
	})

	t.Run("explicit source", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("f1"))
		form := c.Form()
		form.SourceID = "A"
		require.NoError(t, c.SetForm(form))

		plan, err := c.Submit(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "A", plan.Edges[0].Source)
	})

	t.Run("start mode ignores source", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("f1"))
		form := c.Form()
		form.Mode = domain.PositionStart
		form.SourceID = "C"
		require.NoError(t, c.SetForm(form))

		plan, err := c.Submit(context.Background())
		require.NoError(t, err)
		require.Len(t, plan.Edges, 1)
		assert.Equal(t, "n1-A", plan.Edges[0].ID)
	})

	t.Run("empty flowchart falls back to dangling source", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("empty"))

		plan, err := c.Submit(context.Background())
		require.NoError(t, err)
		require.Len(t, plan.Edges, 1)
		assert.Equal(t, planner.FallbackSourceID, plan.Edges[0].Source)

		g, _ := c.Snapshot().Graph("empty")
		assert.Len(t, g.DanglingEdges(), 1)
	})

	t.Run("store failure reopens dialog", func(t *testing.T) {
		store := newStore()
		store.appendErr = errors.New("boom")
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("f1"))
		require.NoError(t, c.SetForm(Form{Label: "Sign", Kind: domain.NodeKindApproval, EdgeLabel: "ok", Mode: domain.PositionEnd}))

		_, err := c.Submit(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, store.appendErr)

		state, id := c.Dialog()
		assert.Equal(t, DialogOpen, state)
		assert.Equal(t, "f1", id)
		assert.Equal(t, "Sign", c.Form().Label)
		assert.Equal(t, 1, store.listCalls, "no refetch after failure")
	})

	t.Run("invalid kind reopens dialog", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("f1"))
		require.NoError(t, c.SetForm(Form{Label: "x", Kind: "diamond", Mode: domain.PositionEnd}))

		_, err := c.Submit(context.Background())
		assert.ErrorIs(t, err, planner.ErrInvalidRequest)
		state, _ := c.Dialog()
		assert.Equal(t, DialogOpen, state)
		assert.Empty(t, store.appends)
	})

	t.Run("closed dialog", func(t *testing.T) {
		c := newController(t, newStore())
		_, err := c.Submit(context.Background())
		assert.ErrorIs(t, err, ErrDialogState)
	})

	t.Run("refetch failure still closes", func(t *testing.T) {
		store := newStore()
		c := newController(t, store)
		require.NoError(t, c.OpenDialog("f1"))

		store.mu.Lock()
		store.listErr = errors.New("down")
		store.mu.Unlock()

		_, err := c.Submit(context.Background())
		require.NoError(t, err)

		state, _ := c.Dialog()
		assert.Equal(t, DialogClosed, state)
		list, _ := c.State()
		assert.Equal(t, ListError, list)
	})
}

func TestDragStopped(t *testing.T) {
	store := newStore()
	c := newController(t, store)

	require.NoError(t, <-c.DragStopped(context.Background(), "f1", "B", domain.Position{X: 40, Y: 77}))
	c.Wait()

	assert.Equal(t, []domain.PositionUpdate{{NodeID: "B", Position: domain.Position{X: 40, Y: 77}}}, store.moves)

	view, err := c.View("f1")
	require.NoError(t, err)
	n, ok := view.Node("B")
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 40, Y: 77}, n.Position)

	a, _ := view.Node("A")
	assert.Equal(t, domain.Position{X: 0, Y: 0}, a.Position)

	t.Run("unknown flowchart", func(t *testing.T) {
		err := <-c.DragStopped(context.Background(), "nope", "B", domain.Position{})
		assert.ErrorIs(t, err, ErrNoFlowchart)
	})

	t.Run("view of unknown flowchart", func(t *testing.T) {
		_, err := c.View("nope")
		assert.ErrorIs(t, err, ErrNoFlowchart)
	})
}
