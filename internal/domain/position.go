package domain

// Position is a node's location on the canvas
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// PositionUpdate is the body of a node-position request: exactly one node
// and its final coordinates
type PositionUpdate struct {
	NodeID   string   `json:"nodeId" validate:"required"`
	Position Position `json:"position"`
}

// NewPositionUpdate creates a position update for a single node
func NewPositionUpdate(nodeID string, x, y float64) PositionUpdate {
	return PositionUpdate{
		NodeID:   nodeID,
		Position: Position{X: x, Y: y},
	}
}
