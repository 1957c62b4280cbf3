package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEdge(t *testing.T) {
	t.Run("uses source-target id", func(t *testing.T) {
		edge := NewEdge("C", "x1y2z3", "next")

		assert.Equal(t, "C-x1y2z3", edge.ID)
		assert.Equal(t, "C", edge.Source)
		assert.Equal(t, "x1y2z3", edge.Target)
		assert.Equal(t, "next", edge.Label)
		assert.Equal(t, EdgeKindDefault, edge.Kind)
	})

	t.Run("id is directional", func(t *testing.T) {
		assert.NotEqual(t, EdgeID("a", "b"), EdgeID("b", "a"))
	})
}

func TestEdgeJSON(t *testing.T) {
	b, err := json.Marshal(NewEdge("A", "B", "approve"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"A-B","source":"A","target":"B","label":"approve","type":"default"}`, string(b))
}
