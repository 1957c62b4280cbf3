package planner

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"flowchart/internal/config"
	"flowchart/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abcGraph() *domain.Graph {
	nodes := []domain.Node{
		domain.NewNode("A", domain.NodeKindStart, "Start", domain.Position{}),
		domain.NewNode("B", domain.NodeKindApproval, "Review", domain.Position{X: 40}),
		domain.NewNode("C", domain.NodeKindEnd, "Done", domain.Position{X: 80}),
	}
	edges := []domain.Edge{domain.NewEdge("A", "B", "next"), domain.NewEdge("B", "C", "next")}
	return domain.NewGraph(domain.Flowchart{ID: "f1"}, nodes, edges)
}

func emptyGraph() *domain.Graph {
	return domain.NewGraph(domain.Flowchart{ID: "f0"}, nil, nil)
}

// scripted returns ids from a fixed list, then repeats the last one
func scripted(ids ...string) IDSource {
	i := 0
	return func() string {
		id := ids[min(i, len(ids)-1)]
		i++
		return id
	}
}

func TestPlanStartMode(t *testing.T) {
	p := New()

	t.Run("links new node to the first node", func(t *testing.T) {
		plan, err := p.Plan(abcGraph(), domain.AppendRequest{Label: "X", Mode: domain.PositionStart, EdgeLabel: "next"})
		require.NoError(t, err)

		require.Len(t, plan.Edges, 1)
		edge := plan.Edges[0]
		assert.Equal(t, plan.Node.ID, edge.Source)
		assert.Equal(t, "A", edge.Target)
		assert.Equal(t, "next", edge.Label)
		assert.Equal(t, plan.Node.ID+"-A", edge.ID)
		assert.Equal(t, "X", plan.Node.Label)
	})

	t.Run("empty graph gets no edge", func(t *testing.T) {
		plan, err := p.Plan(emptyGraph(), domain.AppendRequest{Label: "X", Mode: domain.PositionStart})
		require.NoError(t, err)
		assert.Empty(t, plan.Edges)
	})

	t.Run("explicit source is ignored", func(t *testing.T) {
		plan, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: domain.PositionStart, ExplicitSourceID: "B"})
		require.NoError(t, err)
		require.Len(t, plan.Edges, 1)
		assert.Equal(t, "A", plan.Edges[0].Target)
	})
}

func TestPlanEndAndBothModes(t *testing.T) {
	p := New()

	for _, mode := range []domain.PositionMode{domain.PositionEnd, domain.PositionBoth} {
		t.Run(string(mode)+" defaults to the last node", func(t *testing.T) {
			plan, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: mode, EdgeLabel: "next"})
			require.NoError(t, err)

			require.Len(t, plan.Edges, 1)
			assert.Equal(t, "C", plan.Edges[0].Source)
			assert.Equal(t, plan.Node.ID, plan.Edges[0].Target)
			assert.Equal(t, "next", plan.Edges[0].Label)
			assert.Equal(t, mode, plan.Mode)
		})

		t.Run(string(mode)+" prefers the explicit source", func(t *testing.T) {
			plan, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: mode, ExplicitSourceID: "B"})
			require.NoError(t, err)
			require.Len(t, plan.Edges, 1)
			assert.Equal(t, "B", plan.Edges[0].Source)
		})

		t.Run(string(mode)+" on an empty graph falls back to node 1", func(t *testing.T) {
			g := emptyGraph()
			plan, err := p.Plan(g, domain.AppendRequest{Mode: mode})
			require.NoError(t, err)

			require.Len(t, plan.Edges, 1)
			assert.Equal(t, FallbackSourceID, plan.Edges[0].Source)
			assert.Equal(t, plan.Node.ID, plan.Edges[0].Target)

			dangling := plan.Dangling(g)
			require.Len(t, dangling, 1)
			assert.Equal(t, "1", dangling[0].Source)
		})
	}
}

func TestPlanDoesNotMutateInput(t *testing.T) {
	g := abcGraph()
	nodesBefore := g.Nodes()
	edgesBefore := g.Edges()

	_, err := New().Plan(g, domain.AppendRequest{Mode: domain.PositionEnd, Label: "X"})
	require.NoError(t, err)
	_, err = New().Plan(g, domain.AppendRequest{Mode: domain.PositionStart, Label: "Y"})
	require.NoError(t, err)

	assert.Equal(t, nodesBefore, g.Nodes())
	assert.Equal(t, edgesBefore, g.Edges())
}

func TestPlanNodeShape(t *testing.T) {
	p := New(WithRand(rand.New(rand.NewPCG(1, 2))))

	plan, err := p.Plan(abcGraph(), domain.AppendRequest{Label: "Sign off", Kind: domain.NodeKindApproval, Mode: domain.PositionEnd})
	require.NoError(t, err)

	t.Run("id is six characters", func(t *testing.T) {
		assert.Len(t, plan.Node.ID, IDLength)
	})

	t.Run("position lies in the jitter window", func(t *testing.T) {
		assert.GreaterOrEqual(t, plan.Node.Position.X, 100.0)
		assert.Less(t, plan.Node.Position.X, 300.0)
		assert.GreaterOrEqual(t, plan.Node.Position.Y, 100.0)
		assert.Less(t, plan.Node.Position.Y, 300.0)
	})

	t.Run("kind and label are carried", func(t *testing.T) {
		assert.Equal(t, domain.NodeKindApproval, plan.Node.Kind)
		assert.Equal(t, "Sign off", plan.Node.Data["label"])
	})

	t.Run("empty kind defaults", func(t *testing.T) {
		plan, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: domain.PositionEnd})
		require.NoError(t, err)
		assert.Equal(t, domain.NodeKindDefault, plan.Node.Kind)
	})
}

func TestPlanCustomWindow(t *testing.T) {
	p := New(WithOrigin(0, 0), WithWindow(10))
	plan, err := p.Plan(emptyGraph(), domain.AppendRequest{Mode: domain.PositionStart})
	require.NoError(t, err)
	assert.Less(t, plan.Node.Position.X, 10.0)
	assert.Less(t, plan.Node.Position.Y, 10.0)
}

func TestPlanInvalidRequest(t *testing.T) {
	p := New()

	tests := []struct {
		name string
		req  domain.AppendRequest
	}{
		{"missing mode", domain.AppendRequest{}},
		{"unknown mode", domain.AppendRequest{Mode: "middle"}},
		{"unknown kind", domain.AppendRequest{Mode: domain.PositionEnd, Kind: "decision"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Plan(abcGraph(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestPlanIDCollisionGuard(t *testing.T) {
	t.Run("skips ids already in the graph", func(t *testing.T) {
		p := New(WithIDSource(scripted("A", "B", "fresh1")))

		plan, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: domain.PositionEnd})
		require.NoError(t, err)
		assert.Equal(t, "fresh1", plan.Node.ID)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		p := New(WithIDSource(scripted("A")), WithMaxIDAttempts(3))

		_, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: domain.PositionEnd})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIDExhausted)
	})
}

func TestPlanRepeatedAppendsStayUnique(t *testing.T) {
	// Appending many times against the growing graph must never reuse an id,
	// even with a deliberately tiny id space that forces collisions.
	space := 0
	tiny := func() string {
		space++
		return fmt.Sprintf("%06d", space%700)
	}
	p := New(WithIDSource(tiny), WithMaxIDAttempts(1000))

	g := emptyGraph()
	seen := map[string]bool{}
	for i := 0; i < 600; i++ {
		plan, err := p.Plan(g, domain.AppendRequest{Mode: domain.PositionEnd})
		require.NoError(t, err)
		require.False(t, seen[plan.Node.ID], "duplicate id %s at append %d", plan.Node.ID, i)
		seen[plan.Node.ID] = true

		nodes := append(g.Nodes(), plan.Node)
		edges := append(g.Edges(), plan.Edges...)
		g = domain.NewGraph(g.Flowchart, nodes, edges)
	}
	assert.Equal(t, 600, g.Len())
}

func TestPlanPayload(t *testing.T) {
	plan, err := New().Plan(abcGraph(), domain.AppendRequest{Label: "X", Mode: domain.PositionBoth, EdgeLabel: "next"})
	require.NoError(t, err)

	payload := plan.Payload("f1")
	assert.Equal(t, "f1", payload.FlowchartID)
	assert.Equal(t, []domain.Node{plan.Node}, payload.Nodes)
	assert.Equal(t, plan.Edges, payload.Edges)
	assert.Equal(t, domain.PositionBoth, payload.PositionMode)
	assert.Empty(t, plan.Dangling(abcGraph()))
}

func TestFromConfig(t *testing.T) {
	cfg := config.PlannerConfig{OriginX: 500, OriginY: 500, Window: 1, MaxIDAttempts: 2}
	p := FromConfig(cfg, WithIDSource(scripted("A", "A", "ok")))

	_, err := p.Plan(abcGraph(), domain.AppendRequest{Mode: domain.PositionEnd})
	assert.ErrorIs(t, err, ErrIDExhausted)

	plan, err := FromConfig(cfg).Plan(emptyGraph(), domain.AppendRequest{Mode: domain.PositionStart})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, plan.Node.Position.X, 500.0)
	assert.Less(t, plan.Node.Position.X, 501.0)
}
