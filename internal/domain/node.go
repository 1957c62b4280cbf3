package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NodeKind represents the kind of step a node stands for
type NodeKind string

const (
	NodeKindDefault  NodeKind = "default"
	NodeKindStart    NodeKind = "start"
	NodeKindApproval NodeKind = "approval"
	NodeKindEnd      NodeKind = "end"
)

// NodeKinds lists every kind accepted by the append dialog, in menu order
var NodeKinds = []NodeKind{NodeKindDefault, NodeKindStart, NodeKindApproval, NodeKindEnd}

// Valid reports whether k is one of the known kinds
func (k NodeKind) Valid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// OrDefault returns k, or NodeKindDefault when k is empty
func (k NodeKind) OrDefault() NodeKind {
	if k == "" {
		return NodeKindDefault
	}
	return k
}

// Node is a step in a flowchart
type Node struct {
	ID       string
	Kind     NodeKind
	Label    string
	Data     map[string]any
	Position Position

	// ParentRelation marks the node as derived from another one. It only
	// drives display coloring, never edge semantics.
	ParentRelation string
}

// NewNode creates a node with its label mirrored into Data
func NewNode(id string, kind NodeKind, label string, pos Position) Node {
	return Node{
		ID:       id,
		Kind:     kind.OrDefault(),
		Label:    label,
		Data:     map[string]any{"label": label},
		Position: pos,
	}
}

// IsDerived reports whether the node carries a parent relation
func (n Node) IsDerived() bool {
	return n.ParentRelation != ""
}

// DisplayName returns the label, falling back to the id
func (n Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// nodeWire is the JSON shape exchanged with the store
type nodeWire struct {
	ID             string          `json:"id"`
	Type           NodeKind        `json:"type,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Position       Position        `json:"position"`
	ParentRelation string          `json:"parent_node_key,omitempty"`
}

// MarshalJSON always emits data as an object carrying the label
func (n Node) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["label"] = n.Label

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal node %s data: %w", n.ID, err)
	}

	return json.Marshal(nodeWire{
		ID:             n.ID,
		Type:           n.Kind.OrDefault(),
		Data:           raw,
		Position:       n.Position,
		ParentRelation: n.ParentRelation,
	})
}

// UnmarshalJSON accepts data either as an object or as a string holding a
// JSON object, and always leaves Data as an object
func (n *Node) UnmarshalJSON(b []byte) error {
	var w nodeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	data, err := DecodeNodeData(w.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", w.ID, err)
	}

	*n = Node{
		ID:             w.ID,
		Kind:           w.Type.OrDefault(),
		Data:           data,
		Position:       w.Position,
		ParentRelation: w.ParentRelation,
	}
	if label, ok := data["label"].(string); ok {
		n.Label = label
	}
	return nil
}

// DecodeNodeData turns the raw data field of a node into an object.
// A JSON string is parsed a second time; anything that does not end up as
// an object is an error.
func DecodeNodeData(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode data string: %w", err)
		}
		raw = []byte(s)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode data object: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// DecodeNodes builds nodes from raw JSON elements, preserving their order
func DecodeNodes(raw []json.RawMessage) ([]Node, error) {
	nodes := make([]Node, 0, len(raw))
	for i, r := range raw {
		var n Node
		if err := json.Unmarshal(r, &n); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
