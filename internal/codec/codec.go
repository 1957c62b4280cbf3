// Package codec converts flowcharts to and from file formats: YAML and JSON
// seed files for the store, and JSON, YAML and Mermaid exports of rendered
// flowcharts.
package codec

import (
	"fmt"
	"io"

	"flowchart/internal/domain"
	"flowchart/internal/render"
)

// Importer parses flowcharts with their nodes and edges
type Importer interface {
	Parse(r io.Reader) ([]domain.FlowchartGraph, error)
	Format() string
}

// Exporter writes rendered flowcharts
type Exporter interface {
	Export(graphs []*render.DisplayGraph, w io.Writer) error
	Format() string
}

// ExporterFor returns the exporter registered for a format name
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "mermaid", "mmd":
		return NewMermaidCodec(), nil
	}
	return nil, fmt.Errorf("unknown export format %q (want json, yaml or mermaid)", format)
}

// ImporterFor picks an importer from a file extension
func ImporterFor(ext string) (Importer, error) {
	switch ext {
	case ".json":
		return NewJSONCodec(), nil
	case ".yaml", ".yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unsupported seed file type %q", ext)
}
