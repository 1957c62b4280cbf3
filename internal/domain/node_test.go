package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode(t *testing.T) {
	t.Run("mirrors label into data", func(t *testing.T) {
		node := NewNode("a1b2c3", NodeKindApproval, "Review", Position{X: 10, Y: 20})

		assert.Equal(t, "a1b2c3", node.ID)
		assert.Equal(t, NodeKindApproval, node.Kind)
		assert.Equal(t, "Review", node.Label)
		assert.Equal(t, "Review", node.Data["label"])
		assert.Equal(t, Position{X: 10, Y: 20}, node.Position)
		assert.False(t, node.IsDerived())
	})

	t.Run("empty kind becomes default", func(t *testing.T) {
		node := NewNode("n", "", "Step", Position{})
		assert.Equal(t, NodeKindDefault, node.Kind)
	})
}

func TestNodeKindValid(t *testing.T) {
	tests := []struct {
		kind  NodeKind
		valid bool
	}{
		{NodeKindDefault, true},
		{NodeKindStart, true},
		{NodeKindApproval, true},
		{NodeKindEnd, true},
		{"decision", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.kind.Valid(), "NodeKind(%q).Valid()", tt.kind)
	}
}

func TestNodeDisplayName(t *testing.T) {
	assert.Equal(t, "Review", Node{ID: "x", Label: "Review"}.DisplayName())
	assert.Equal(t, "x", Node{ID: "x"}.DisplayName())
}

func TestNodeUnmarshalJSON(t *testing.T) {
	t.Run("data as JSON string is decoded into an object", func(t *testing.T) {
		raw := `{"id":"B","type":"approval","data":"{\"label\":\"Review\"}","position":{"x":1,"y":2}}`

		var node Node
		require.NoError(t, json.Unmarshal([]byte(raw), &node))

		assert.Equal(t, map[string]any{"label": "Review"}, node.Data)
		assert.Equal(t, "Review", node.Label)
		assert.Equal(t, NodeKindApproval, node.Kind)
		assert.Equal(t, Position{X: 1, Y: 2}, node.Position)
	})

	t.Run("data as object is kept", func(t *testing.T) {
		raw := `{"id":"A","data":{"label":"Start","owner":"ops"},"position":{"x":0,"y":0}}`

		var node Node
		require.NoError(t, json.Unmarshal([]byte(raw), &node))

		assert.Equal(t, "Start", node.Label)
		assert.Equal(t, "ops", node.Data["owner"])
		assert.Equal(t, NodeKindDefault, node.Kind)
	})

	t.Run("missing data yields empty object", func(t *testing.T) {
		var node Node
		require.NoError(t, json.Unmarshal([]byte(`{"id":"A","position":{"x":0,"y":0}}`), &node))

		assert.NotNil(t, node.Data)
		assert.Empty(t, node.Data)
		assert.Empty(t, node.Label)
	})

	t.Run("parent relation is read", func(t *testing.T) {
		var node Node
		require.NoError(t, json.Unmarshal([]byte(`{"id":"C","data":{},"position":{"x":0,"y":0},"parent_node_key":"A"}`), &node))

		assert.True(t, node.IsDerived())
		assert.Equal(t, "A", node.ParentRelation)
	})

	t.Run("non-JSON data string is an error", func(t *testing.T) {
		var node Node
		err := json.Unmarshal([]byte(`{"id":"Z","data":"Review","position":{"x":0,"y":0}}`), &node)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "node Z")
	})

	t.Run("data string holding a non-object is an error", func(t *testing.T) {
		var node Node
		err := json.Unmarshal([]byte(`{"id":"Z","data":"[1,2]","position":{"x":0,"y":0}}`), &node)
		require.Error(t, err)
	})
}

func TestNodeMarshalJSON(t *testing.T) {
	node := NewNode("X", NodeKindEnd, "Done", Position{X: 5, Y: 6})
	node.ParentRelation = "A"

	b, err := json.Marshal(node)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(b, &wire))

	assert.Equal(t, "X", wire["id"])
	assert.Equal(t, "end", wire["type"])
	assert.Equal(t, map[string]any{"label": "Done"}, wire["data"])
	assert.Equal(t, map[string]any{"x": 5.0, "y": 6.0}, wire["position"])
	assert.Equal(t, "A", wire["parent_node_key"])
}

func TestDecodeNodes(t *testing.T) {
	t.Run("keeps arrival order", func(t *testing.T) {
		raw := []json.RawMessage{
			json.RawMessage(`{"id":"A","data":{"label":"a"},"position":{"x":0,"y":0}}`),
			json.RawMessage(`{"id":"B","data":"{\"label\":\"b\"}","position":{"x":0,"y":0}}`),
		}

		nodes, err := DecodeNodes(raw)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, "A", nodes[0].ID)
		assert.Equal(t, "b", nodes[1].Label)
	})

	t.Run("reports the failing element", func(t *testing.T) {
		raw := []json.RawMessage{json.RawMessage(`{"id":"A","data":"oops","position":{"x":0,"y":0}}`)}

		_, err := DecodeNodes(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node 0")
	})
}
