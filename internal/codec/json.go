package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"flowchart/internal/domain"
	"flowchart/internal/render"
)

// JSONCodec handles JSON import/export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports flowcharts in the store's list response shape
func (c *JSONCodec) Parse(r io.Reader) ([]domain.FlowchartGraph, error) {
	var list []domain.FlowchartGraph
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	for i := range list {
		if list[i].Flowchart.ID == "" {
			return nil, fmt.Errorf("flowchart %d: missing id", i)
		}
		fillEdgeIDs(list[i].Edges)
	}
	return list, nil
}

// Export writes rendered flowcharts as an indented JSON array
func (c *JSONCodec) Export(graphs []*render.DisplayGraph, w io.Writer) error {
	if graphs == nil {
		graphs = []*render.DisplayGraph{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(graphs); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func fillEdgeIDs(edges []domain.Edge) {
	for i := range edges {
		if edges[i].ID == "" {
			edges[i].ID = domain.EdgeID(edges[i].Source, edges[i].Target)
		}
		if edges[i].Kind == "" {
			edges[i].Kind = domain.EdgeKindDefault
		}
	}
}
