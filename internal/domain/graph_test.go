package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abcNodes() []Node {
	return []Node{
		NewNode("A", NodeKindStart, "Start", Position{}),
		NewNode("B", NodeKindApproval, "Review", Position{X: 40}),
		NewNode("C", NodeKindEnd, "Done", Position{X: 80}),
	}
}

func TestGraphQueries(t *testing.T) {
	g := NewGraph(Flowchart{ID: "f1"}, abcNodes(), []Edge{NewEdge("A", "B", "next")})

	t.Run("first and last follow arrival order", func(t *testing.T) {
		first, ok := g.FirstNode()
		require.True(t, ok)
		assert.Equal(t, "A", first.ID)

		last, ok := g.LastNode()
		require.True(t, ok)
		assert.Equal(t, "C", last.ID)
	})

	t.Run("lookup by id", func(t *testing.T) {
		n, ok := g.NodeByID("B")
		require.True(t, ok)
		assert.Equal(t, "Review", n.Label)

		_, ok = g.NodeByID("missing")
		assert.False(t, ok)
		assert.True(t, g.HasNode("C"))
	})

	t.Run("node ids", func(t *testing.T) {
		assert.Equal(t, []string{"A", "B", "C"}, g.NodeIDs())
		assert.Equal(t, 3, g.Len())
	})
}

func TestGraphEmpty(t *testing.T) {
	g := NewGraph(Flowchart{ID: "empty"}, nil, nil)

	_, ok := g.FirstNode()
	assert.False(t, ok)
	_, ok = g.LastNode()
	assert.False(t, ok)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.DanglingEdges())
}

func TestGraphCopiesInput(t *testing.T) {
	nodes := abcNodes()
	g := NewGraph(Flowchart{ID: "f1"}, nodes, nil)

	nodes[0].Label = "Modified"
	first, _ := g.FirstNode()
	assert.Equal(t, "Start", first.Label)

	out := g.Nodes()
	out[1].Label = "Changed"
	n, _ := g.NodeByID("B")
	assert.Equal(t, "Review", n.Label)
}

func TestGraphDuplicateIDsResolveToFirst(t *testing.T) {
	nodes := []Node{
		NewNode("dup", NodeKindDefault, "one", Position{}),
		NewNode("dup", NodeKindDefault, "two", Position{}),
	}
	g := NewGraph(Flowchart{}, nodes, nil)

	n, ok := g.NodeByID("dup")
	require.True(t, ok)
	assert.Equal(t, "one", n.Label)
	last, _ := g.LastNode()
	assert.Equal(t, "two", last.Label)
}

func TestGraphDanglingEdges(t *testing.T) {
	edges := []Edge{
		NewEdge("A", "B", "next"),
		NewEdge("1", "A", "next"),
		NewEdge("C", "ghost", "next"),
	}
	g := NewGraph(Flowchart{ID: "f1"}, abcNodes(), edges)

	dangling := g.DanglingEdges()
	require.Len(t, dangling, 2)
	assert.Equal(t, "1-A", dangling[0].ID)
	assert.Equal(t, "C-ghost", dangling[1].ID)
}

func TestGraphFromStringEncodedData(t *testing.T) {
	body := `[{"flowchart":{"id":"f1","title":"Onboarding"},
		"nodes":[{"id":"B","type":"approval","data":"{\"label\":\"Review\"}","position":{"x":0,"y":0}}],
		"edges":[]}]`

	var list []FlowchartGraph
	require.NoError(t, json.Unmarshal([]byte(body), &list))

	snap := NewSnapshot(1, time.Now(), list)
	g, ok := snap.Graph("f1")
	require.True(t, ok)

	n, ok := g.NodeByID("B")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"label": "Review"}, n.Data)
}

func TestSnapshotGraph(t *testing.T) {
	list := []FlowchartGraph{
		{Flowchart: Flowchart{ID: "f1"}},
		{Flowchart: Flowchart{ID: "f2"}, Nodes: abcNodes()},
	}
	snap := NewSnapshot(7, time.Unix(100, 0), list)

	assert.Equal(t, uint64(7), snap.Version)
	g, ok := snap.Graph("f2")
	require.True(t, ok)
	assert.Equal(t, 3, g.Len())

	_, ok = snap.Graph("nope")
	assert.False(t, ok)

	var nilSnap *Snapshot
	_, ok = nilSnap.Graph("f1")
	assert.False(t, ok)
}

func TestFlowchartDisplayDefaults(t *testing.T) {
	assert.Equal(t, "Untitled Flowchart", Flowchart{}.DisplayTitle())
	assert.Equal(t, "No description provided.", Flowchart{}.DisplayDescription())

	f := Flowchart{Title: "Hiring", Description: "Steps"}
	assert.Equal(t, "Hiring", f.DisplayTitle())
	assert.Equal(t, "Steps", f.DisplayDescription())
}
