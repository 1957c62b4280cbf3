package domain

// Graph is a read-only snapshot of one flowchart's nodes and edges.
// Nodes keep the order in which the store returned them.
type Graph struct {
	Flowchart Flowchart
	nodes     []Node
	edges     []Edge
	index     map[string]int
}

// NewGraph builds a graph from copies of nodes and edges.
// When ids repeat, NodeByID resolves to the first occurrence.
func NewGraph(f Flowchart, nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		Flowchart: f,
		nodes:     append([]Node(nil), nodes...),
		edges:     append([]Edge(nil), edges...),
		index:     make(map[string]int, len(nodes)),
	}
	for i, n := range g.nodes {
		if _, seen := g.index[n.ID]; !seen {
			g.index[n.ID] = i
		}
	}
	return g
}

// GraphFrom builds a graph from one element of the list response
func GraphFrom(fg FlowchartGraph) *Graph {
	return NewGraph(fg.Flowchart, fg.Nodes, fg.Edges)
}

// Nodes returns a copy of the nodes in arrival order
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Edges returns a copy of the edges
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// FirstNode returns the first node in arrival order
func (g *Graph) FirstNode() (Node, bool) {
	if len(g.nodes) == 0 {
		return Node{}, false
	}
	return g.nodes[0], true
}

// LastNode returns the last node in arrival order
func (g *Graph) LastNode() (Node, bool) {
	if len(g.nodes) == 0 {
		return Node{}, false
	}
	return g.nodes[len(g.nodes)-1], true
}

// NodeByID looks a node up by id
func (g *Graph) NodeByID(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// HasNode reports whether a node with the given id exists
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// NodeIDs returns the node ids in arrival order
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// DanglingEdges returns edges whose source or target is not a node of g
func (g *Graph) DanglingEdges() []Edge {
	var dangling []Edge
	for _, e := range g.edges {
		if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			dangling = append(dangling, e)
		}
	}
	return dangling
}
