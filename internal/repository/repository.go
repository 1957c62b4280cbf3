package repository

import (
	"context"
	"errors"

	"flowchart/internal/domain"
)

var (
	// ErrNotFound is returned when a flowchart or node does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an append reuses a node or edge id
	ErrDuplicate = errors.New("duplicate id")
)

// Repository defines the interface for flowchart data access
type Repository interface {
	// Read operations
	ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error)
	GetFlowchart(ctx context.Context, id string) (*domain.FlowchartGraph, error)

	// Write operations
	UpsertFlowchart(ctx context.Context, f domain.Flowchart) error
	// DeleteFlowchart returns ErrNotFound for unknown ids
	DeleteFlowchart(ctx context.Context, id string) error
	AppendToFlowchart(ctx context.Context, flowchartID string, nodes []domain.Node, edges []domain.Edge) error

	// Layout persistence. Returns how many node rows were updated.
	UpdateNodePosition(ctx context.Context, nodeID string, pos domain.Position) (int64, error)

	// Bulk operations
	ImportFlowcharts(ctx context.Context, list []domain.FlowchartGraph) error

	// Users
	GetUser(ctx context.Context, email string) (*domain.User, error)
	UpsertUser(ctx context.Context, user domain.User) error

	// Close releases resources
	Close() error
}
