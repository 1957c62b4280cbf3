package codec

import (
	"fmt"
	"io"

	"flowchart/internal/render"
)

// MermaidCodec exports flowcharts as Mermaid diagrams
type MermaidCodec struct{}

// NewMermaidCodec creates a new Mermaid codec
func NewMermaidCodec() *MermaidCodec {
	return &MermaidCodec{}
}

// Format returns the codec format identifier
func (c *MermaidCodec) Format() string {
	return "mermaid"
}

// Export writes one titled diagram per flowchart
func (c *MermaidCodec) Export(graphs []*render.DisplayGraph, w io.Writer) error {
	for i, g := range graphs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%%%% %s (%s)\n%s", g.Title, g.FlowchartID, g.Mermaid()); err != nil {
			return fmt.Errorf("failed to write mermaid: %w", err)
		}
	}
	return nil
}
