package domain

import "time"

// Snapshot is the immutable result of one list fetch. A newer snapshot
// replaces an older one as a whole.
type Snapshot struct {
	Version     uint64
	RequestedAt time.Time
	Graphs      []*Graph
}

// NewSnapshot builds graphs for every flowchart in a list response
func NewSnapshot(version uint64, requestedAt time.Time, list []FlowchartGraph) *Snapshot {
	s := &Snapshot{
		Version:     version,
		RequestedAt: requestedAt,
		Graphs:      make([]*Graph, 0, len(list)),
	}
	for _, fg := range list {
		s.Graphs = append(s.Graphs, GraphFrom(fg))
	}
	return s
}

// Graph returns the graph of the given flowchart
func (s *Snapshot) Graph(flowchartID string) (*Graph, bool) {
	if s == nil {
		return nil, false
	}
	for _, g := range s.Graphs {
		if g.Flowchart.ID == flowchartID {
			return g, true
		}
	}
	return nil, false
}
