package codec

import (
	"fmt"
	"io"

	"flowchart/internal/domain"
	"flowchart/internal/render"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML seed files and YAML exports
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// yamlSeed represents the YAML structure of a seed file
type yamlSeed struct {
	Flowcharts []yamlFlowchart `yaml:"flowcharts"`
}

type yamlFlowchart struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Nodes       []yamlNode `yaml:"nodes"`
	Edges       []yamlEdge `yaml:"edges"`
}

type yamlNode struct {
	ID       string          `yaml:"id"`
	Type     string          `yaml:"type,omitempty"`
	Label    string          `yaml:"label"`
	Position domain.Position `yaml:"position"`
	Parent   string          `yaml:"parent,omitempty"`
	Data     map[string]any  `yaml:"data,omitempty"`
}

type yamlEdge struct {
	ID     string `yaml:"id,omitempty"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Label  string `yaml:"label,omitempty"`
	Type   string `yaml:"type,omitempty"`
}

// Parse imports flowcharts from a YAML seed file
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.FlowchartGraph, error) {
	var seed yamlSeed
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	list := make([]domain.FlowchartGraph, 0, len(seed.Flowcharts))
	for i, yf := range seed.Flowcharts {
		if yf.ID == "" {
			return nil, fmt.Errorf("flowchart %d: missing id", i)
		}

		fg := domain.FlowchartGraph{
			Flowchart: domain.Flowchart{ID: yf.ID, Title: yf.Title, Description: yf.Description},
			Nodes:     make([]domain.Node, 0, len(yf.Nodes)),
			Edges:     make([]domain.Edge, 0, len(yf.Edges)),
		}

		// Convert nodes
		for _, yn := range yf.Nodes {
			kind := domain.NodeKind(yn.Type).OrDefault()
			if !kind.Valid() {
				return nil, fmt.Errorf("flowchart %s: node %s: unknown type %q", yf.ID, yn.ID, yn.Type)
			}
			node := domain.NewNode(yn.ID, kind, yn.Label, yn.Position)
			node.ParentRelation = yn.Parent
			for k, v := range yn.Data {
				if k != "label" {
					node.Data[k] = v
				}
			}
			fg.Nodes = append(fg.Nodes, node)
		}

		// Convert edges
		for _, ye := range yf.Edges {
			fg.Edges = append(fg.Edges, domain.Edge{
				ID:     ye.ID,
				Source: ye.Source,
				Target: ye.Target,
				Label:  ye.Label,
				Kind:   domain.EdgeKind(ye.Type),
			})
		}
		fillEdgeIDs(fg.Edges)

		list = append(list, fg)
	}

	return list, nil
}

// yamlExport is the document written by Export
type yamlExport struct {
	Flowcharts []*render.DisplayGraph `yaml:"flowcharts"`
}

// Export writes rendered flowcharts as YAML
func (c *YAMLCodec) Export(graphs []*render.DisplayGraph, w io.Writer) error {
	if graphs == nil {
		graphs = []*render.DisplayGraph{}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(yamlExport{Flowcharts: graphs}); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
