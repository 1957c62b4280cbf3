package domain

const (
	defaultTitle       = "Untitled Flowchart"
	defaultDescription = "No description provided."
)

// Flowchart is a named directed graph of steps
type Flowchart struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayTitle returns the title or its placeholder
func (f Flowchart) DisplayTitle() string {
	if f.Title == "" {
		return defaultTitle
	}
	return f.Title
}

// DisplayDescription returns the description or its placeholder
func (f Flowchart) DisplayDescription() string {
	if f.Description == "" {
		return defaultDescription
	}
	return f.Description
}

// FlowchartGraph is one element of the store's list response
type FlowchartGraph struct {
	Flowchart Flowchart `json:"flowchart"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
}
