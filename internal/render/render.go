// Package render maps flowchart graphs to display graphs: node roles and
// colors, edge labels, markers and animation hints. It carries no business
// rules beyond keeping node and edge identity.
package render

import (
	"fmt"
	"strings"

	"flowchart/internal/domain"
)

// Role is the visual role of a node
type Role string

const (
	RoleOrigin  Role = "origin"
	RoleDerived Role = "derived"
)

const (
	// DefaultEdgeLabel is shown on edges stored without a label
	DefaultEdgeLabel = "next"
	// ConnectedEdgeLabel is used for edges drawn by hand on the canvas
	ConnectedEdgeLabel = "connected"
	// MarkerArrowClosed terminates every edge
	MarkerArrowClosed = "arrowclosed"

	originBackground  = "#d1e7dd"
	derivedBackground = "#f8d7da"
	nodeBorder        = "1px solid #888"
	edgeStroke        = "#555"
)

// NodeStyle holds node presentation hints
type NodeStyle struct {
	Background string `json:"backgroundColor" yaml:"background"`
	Border     string `json:"border" yaml:"border"`
	Padding    int    `json:"padding" yaml:"padding"`
}

// EdgeStyle holds edge presentation hints
type EdgeStyle struct {
	Stroke        string `json:"stroke" yaml:"stroke"`
	LabelFill     string `json:"labelFill" yaml:"label_fill"`
	LabelWeight   int    `json:"labelWeight" yaml:"label_weight"`
	LabelFontSize int    `json:"labelFontSize" yaml:"label_font_size"`
}

// DisplayNode is a node ready to draw
type DisplayNode struct {
	ID       string          `json:"id" yaml:"id"`
	Kind     domain.NodeKind `json:"type" yaml:"type"`
	Label    string          `json:"label" yaml:"label"`
	Role     Role            `json:"role" yaml:"role"`
	Position domain.Position `json:"position" yaml:"position"`
	Style    NodeStyle       `json:"style" yaml:"style"`
}

// DisplayEdge is an edge ready to draw
type DisplayEdge struct {
	ID        string          `json:"id" yaml:"id"`
	Source    string          `json:"source" yaml:"source"`
	Target    string          `json:"target" yaml:"target"`
	Label     string          `json:"label" yaml:"label"`
	Kind      domain.EdgeKind `json:"type" yaml:"type"`
	Animated  bool            `json:"animated" yaml:"animated"`
	MarkerEnd string          `json:"markerEnd" yaml:"marker_end"`
	Style     EdgeStyle       `json:"style" yaml:"style"`
	Local     bool            `json:"local,omitempty" yaml:"local,omitempty"`
}

// DisplayGraph is the display form of one flowchart
type DisplayGraph struct {
	FlowchartID string        `json:"flowchartId" yaml:"flowchart_id"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Nodes       []DisplayNode `json:"nodes" yaml:"nodes"`
	Edges       []DisplayEdge `json:"edges" yaml:"edges"`
}

// Derive converts a graph into its display form
func Derive(g *domain.Graph) *DisplayGraph {
	nodes := g.Nodes()
	edges := g.Edges()

	dg := &DisplayGraph{
		FlowchartID: g.Flowchart.ID,
		Title:       g.Flowchart.DisplayTitle(),
		Description: g.Flowchart.DisplayDescription(),
		Nodes:       make([]DisplayNode, 0, len(nodes)),
		Edges:       make([]DisplayEdge, 0, len(edges)),
	}

	for _, n := range nodes {
		dg.Nodes = append(dg.Nodes, displayNode(n))
	}
	for _, e := range edges {
		dg.Edges = append(dg.Edges, displayEdge(e))
	}

	return dg
}

func displayNode(n domain.Node) DisplayNode {
	role := RoleOrigin
	background := originBackground
	if n.IsDerived() {
		role = RoleDerived
		background = derivedBackground
	}

	return DisplayNode{
		ID:       n.ID,
		Kind:     n.Kind.OrDefault(),
		Label:    n.DisplayName(),
		Role:     role,
		Position: n.Position,
		Style: NodeStyle{
			Background: background,
			Border:     nodeBorder,
			Padding:    10,
		},
	}
}

func displayEdge(e domain.Edge) DisplayEdge {
	label := e.Label
	if label == "" {
		label = DefaultEdgeLabel
	}
	kind := e.Kind
	if kind == "" {
		kind = domain.EdgeKindDefault
	}

	return DisplayEdge{
		ID:        e.ID,
		Source:    e.Source,
		Target:    e.Target,
		Label:     label,
		Kind:      kind,
		Animated:  true,
		MarkerEnd: MarkerArrowClosed,
		Style: EdgeStyle{
			Stroke:        edgeStroke,
			LabelFill:     "#222",
			LabelWeight:   500,
			LabelFontSize: 12,
		},
	}
}

// Node returns the display node with the given id
func (dg *DisplayGraph) Node(id string) (DisplayNode, bool) {
	for _, n := range dg.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return DisplayNode{}, false
}

// MoveNode sets the position of a display node in place
func (dg *DisplayGraph) MoveNode(id string, pos domain.Position) bool {
	for i := range dg.Nodes {
		if dg.Nodes[i].ID == id {
			dg.Nodes[i].Position = pos
			return true
		}
	}
	return false
}

// Connect adds a hand-drawn edge to the display only. It is never sent to
// the store and disappears on the next fetch. Returns false when the edge
// already exists.
func (dg *DisplayGraph) Connect(source, target string) bool {
	id := domain.EdgeID(source, target)
	for _, e := range dg.Edges {
		if e.ID == id {
			return false
		}
	}

	edge := displayEdge(domain.Edge{ID: id, Source: source, Target: target, Label: ConnectedEdgeLabel})
	edge.Local = true
	dg.Edges = append(dg.Edges, edge)
	return true
}

// Empty reports whether there is nothing to draw
func (dg *DisplayGraph) Empty() bool {
	return len(dg.Nodes) == 0
}

// Mermaid renders the graph as a Mermaid flowchart for terminals and docs
func (dg *DisplayGraph) Mermaid() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	for _, n := range dg.Nodes {
		fmt.Fprintf(&b, "    %s%s\n", mermaidID(n.ID), mermaidShape(n))
	}
	for _, e := range dg.Edges {
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", mermaidID(e.Source), mermaidText(e.Label), mermaidID(e.Target))
	}
	for _, n := range dg.Nodes {
		if n.Role == RoleDerived {
			fmt.Fprintf(&b, "    style %s fill:%s\n", mermaidID(n.ID), derivedBackground)
		}
	}

	return b.String()
}

func mermaidShape(n DisplayNode) string {
	label := mermaidText(n.Label)
	switch n.Kind {
	case domain.NodeKindStart, domain.NodeKindEnd:
		return fmt.Sprintf("([%s])", label)
	case domain.NodeKindApproval:
		return fmt.Sprintf("{%s}", label)
	default:
		return fmt.Sprintf("[%s]", label)
	}
}

// mermaidID prefixes ids so that ones starting with digits stay valid.
// Underscores are doubled and other bytes outside [A-Za-z0-9-] become _xx,
// so distinct ids never collide.
func mermaidID(id string) string {
	var b strings.Builder
	b.WriteString("n_")
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c == '-' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9'):
			b.WriteByte(c)
		case c == '_':
			b.WriteString("__")
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

func mermaidText(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "#quot;") + `"`
}
