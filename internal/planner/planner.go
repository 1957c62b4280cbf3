// Package planner computes the node and edges needed to append a step to a
// flowchart. Planning is side-effect free: it reads a graph snapshot and
// returns a proposal the caller may send to the store.
package planner

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"flowchart/internal/config"
	"flowchart/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// IDLength is the length of generated node ids
	IDLength = 6

	// FallbackSourceID is used as the edge source in end/both mode when the
	// request names no source and the graph is empty. No node carries this
	// id in an empty graph, so the resulting edge dangles; Plan.Dangling
	// reports it.
	FallbackSourceID = "1"

	defaultOrigin        = 100.0
	defaultWindow        = 200.0
	defaultMaxIDAttempts = 8
)

var (
	// ErrInvalidRequest is returned for unknown modes or kinds
	ErrInvalidRequest = errors.New("invalid append request")
	// ErrIDExhausted is returned when every generated id collided
	ErrIDExhausted = errors.New("could not generate an unused node id")
)

// IDSource produces candidate node ids
type IDSource func() string

// NewShortID returns the first IDLength characters of a random UUID
func NewShortID() string {
	return uuid.NewString()[:IDLength]
}

// Planner turns append requests into plans
type Planner struct {
	newID         IDSource
	origin        domain.Position
	window        float64
	maxIDAttempts int
	validate      *validator.Validate

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Planner
type Option func(*Planner)

// WithIDSource replaces the id generator
func WithIDSource(src IDSource) Option {
	return func(p *Planner) { p.newID = src }
}

// WithRand replaces the random source used for position jitter
func WithRand(r *rand.Rand) Option {
	return func(p *Planner) { p.rnd = r }
}

// WithOrigin sets the corner of the jitter window
func WithOrigin(x, y float64) Option {
	return func(p *Planner) { p.origin = domain.Position{X: x, Y: y} }
}

// WithWindow sets the jitter window size on each axis
func WithWindow(size float64) Option {
	return func(p *Planner) { p.window = size }
}

// WithMaxIDAttempts bounds how many ids are tried before giving up
func WithMaxIDAttempts(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxIDAttempts = n
		}
	}
}

// New creates a planner with the default origin (100,100) and window 200
func New(opts ...Option) *Planner {
	p := &Planner{
		newID:         NewShortID,
		origin:        domain.Position{X: defaultOrigin, Y: defaultOrigin},
		window:        defaultWindow,
		maxIDAttempts: defaultMaxIDAttempts,
		validate:      validator.New(),
		rnd:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromConfig creates a planner from the planner config section
func FromConfig(cfg config.PlannerConfig, opts ...Option) *Planner {
	base := []Option{
		WithOrigin(cfg.OriginX, cfg.OriginY),
		WithWindow(cfg.Window),
		WithMaxIDAttempts(cfg.MaxIDAttempts),
	}
	return New(append(base, opts...)...)
}

// Plan is the node and edges proposed for one append
type Plan struct {
	Node  domain.Node
	Edges []domain.Edge
	Mode  domain.PositionMode
}

// Payload wraps the plan into a store append body
func (pl *Plan) Payload(flowchartID string) domain.AppendPayload {
	return domain.AppendPayload{
		FlowchartID:  flowchartID,
		Nodes:        []domain.Node{pl.Node},
		Edges:        append([]domain.Edge(nil), pl.Edges...),
		PositionMode: pl.Mode,
	}
}

// Dangling returns planned edges with an endpoint that is neither the new
// node nor a node of g
func (pl *Plan) Dangling(g *domain.Graph) []domain.Edge {
	known := func(id string) bool {
		return id == pl.Node.ID || (g != nil && g.HasNode(id))
	}

	var dangling []domain.Edge
	for _, e := range pl.Edges {
		if !known(e.Source) || !known(e.Target) {
			dangling = append(dangling, e)
		}
	}
	return dangling
}

// Plan computes the new node and the edges to add. g is only read.
//
// start: new -> first node, or no edge for an empty graph.
// end and both: source -> new, where source is the explicit source id, else
// the last node, else FallbackSourceID.
func (p *Planner) Plan(g *domain.Graph, req domain.AppendRequest) (*Plan, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if g == nil {
		g = domain.NewGraph(domain.Flowchart{ID: req.FlowchartID}, nil, nil)
	}

	id, err := p.uniqueID(g)
	if err != nil {
		return nil, err
	}

	node := domain.NewNode(id, req.Kind, req.Label, p.jitter())
	plan := &Plan{Node: node, Mode: req.Mode}

	switch req.Mode {
	case domain.PositionStart:
		if first, ok := g.FirstNode(); ok {
			plan.Edges = append(plan.Edges, domain.NewEdge(node.ID, first.ID, req.EdgeLabel))
		}
	case domain.PositionEnd, domain.PositionBoth:
		plan.Edges = append(plan.Edges, domain.NewEdge(resolveSource(g, req), node.ID, req.EdgeLabel))
	}

	return plan, nil
}

// resolveSource picks the origin of an end/both edge
func resolveSource(g *domain.Graph, req domain.AppendRequest) string {
	if req.ExplicitSourceID != "" {
		return req.ExplicitSourceID
	}
	if last, ok := g.LastNode(); ok {
		return last.ID
	}
	return FallbackSourceID
}

// uniqueID draws ids until one is unused in g
func (p *Planner) uniqueID(g *domain.Graph) (string, error) {
	for range p.maxIDAttempts {
		id := p.newID()
		if !g.HasNode(id) {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrIDExhausted, p.maxIDAttempts)
}

func (p *Planner) jitter() domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.Position{
		X: p.origin.X + p.rnd.Float64()*p.window,
		Y: p.origin.Y + p.rnd.Float64()*p.window,
	}
}
