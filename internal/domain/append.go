package domain

// PositionMode decides where a new node attaches to the existing chain
type PositionMode string

const (
	PositionStart PositionMode = "start"
	PositionEnd   PositionMode = "end"
	// PositionBoth currently attaches exactly like PositionEnd
	PositionBoth PositionMode = "both"
)

// PositionModes lists the accepted modes in menu order
var PositionModes = []PositionMode{PositionStart, PositionEnd, PositionBoth}

// Valid reports whether m is a known mode
func (m PositionMode) Valid() bool {
	switch m {
	case PositionStart, PositionEnd, PositionBoth:
		return true
	}
	return false
}

// AppendRequest carries the append dialog parameters. It is never persisted.
type AppendRequest struct {
	FlowchartID      string
	Label            string
	Kind             NodeKind     `validate:"omitempty,oneof=default start approval end"`
	EdgeLabel        string
	Mode             PositionMode `validate:"required,oneof=start end both"`
	ExplicitSourceID string
}

// AppendPayload is the body of an append request to the store
type AppendPayload struct {
	FlowchartID  string       `json:"flowchartId" validate:"required"`
	Nodes        []Node       `json:"nodes" validate:"required,min=1"`
	Edges        []Edge       `json:"edges"`
	PositionMode PositionMode `json:"positionMode" validate:"required,oneof=start end both"`
}
