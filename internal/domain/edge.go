package domain

import "fmt"

// EdgeKind represents the rendering kind of an edge
type EdgeKind string

const (
	EdgeKindDefault EdgeKind = "default"
)

// Edge is a labeled directed transition between two nodes.
// Source and Target are expected to name nodes of the same flowchart; this
// is not enforced here (see Graph.DanglingEdges).
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Label  string   `json:"label,omitempty"`
	Kind   EdgeKind `json:"type,omitempty"`
}

// NewEdge creates an edge with the conventional "<source>-<target>" id
func NewEdge(source, target, label string) Edge {
	return Edge{
		ID:     EdgeID(source, target),
		Source: source,
		Target: target,
		Label:  label,
		Kind:   EdgeKindDefault,
	}
}

// EdgeID returns the conventional id for an edge between two nodes
func EdgeID(source, target string) string {
	return fmt.Sprintf("%s-%s", source, target)
}
