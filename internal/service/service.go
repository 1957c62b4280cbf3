package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"flowchart/internal/codec"
	"flowchart/internal/domain"
	"flowchart/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned for unknown flowcharts or nodes
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an append reuses a node or edge id
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for malformed payloads
	ErrValidation = errors.New("validation failed")
)

// FlowchartService provides business logic for flowchart operations
type FlowchartService struct {
	repo     repository.Repository
	eventBus *EventBus
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFlowchartService creates a new flowchart service
func NewFlowchartService(repo repository.Repository, eventBus *EventBus, logger *zap.Logger) *FlowchartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowchartService{
		repo:     repo,
		eventBus: eventBus,
		validate: validator.New(),
		logger:   logger,
	}
}

// ListFlowcharts returns every flowchart with its nodes and edges
func (s *FlowchartService) ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error) {
	return s.repo.ListFlowcharts(ctx)
}

// GetFlowchart retrieves one flowchart
func (s *FlowchartService) GetFlowchart(ctx context.Context, id string) (*domain.FlowchartGraph, error) {
	fg, err := s.repo.GetFlowchart(ctx, id)
	if err != nil {
		return nil, err
	}
	if fg == nil {
		return nil, fmt.Errorf("flowchart %s: %w", id, ErrNotFound)
	}
	return fg, nil
}

// SaveFlowchart creates a flowchart or updates its title and description.
// Nodes and edges are left alone.
func (s *FlowchartService) SaveFlowchart(ctx context.Context, f domain.Flowchart) error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: flowchart id is required", ErrValidation)
	}
	if err := s.repo.UpsertFlowchart(ctx, f); err != nil {
		return err
	}

	s.logger.Info("Saved flowchart", zap.String("flowchart_id", f.ID))
	s.eventBus.Publish(Event{
		Type:    EventFlowchartSaved,
		Payload: map[string]any{"flowchart_id": f.ID},
	})
	return nil
}

// DeleteFlowchart removes a flowchart with its nodes and edges
func (s *FlowchartService) DeleteFlowchart(ctx context.Context, id string) error {
	err := s.repo.DeleteFlowchart(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("flowchart %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	s.logger.Info("Deleted flowchart", zap.String("flowchart_id", id))
	s.eventBus.Publish(Event{
		Type:    EventFlowchartDeleted,
		Payload: map[string]any{"flowchart_id": id},
	})
	return nil
}

// Append stores the nodes and edges of an append payload. Edge endpoints
// are not checked against existing nodes.
func (s *FlowchartService) Append(ctx context.Context, payload domain.AppendPayload) error {
	if err := s.validateAppend(payload); err != nil {
		return err
	}

	err := s.repo.AppendToFlowchart(ctx, payload.FlowchartID, payload.Nodes, payload.Edges)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("flowchart %s: %w", payload.FlowchartID, ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case err != nil:
		return err
	}

	nodeIDs := make([]string, len(payload.Nodes))
	for i, n := range payload.Nodes {
		nodeIDs[i] = n.ID
	}

	s.logger.Info("Appended to flowchart",
		zap.String("flowchart_id", payload.FlowchartID),
		zap.Strings("node_ids", nodeIDs),
		zap.Int("edges", len(payload.Edges)),
		zap.String("position_mode", string(payload.PositionMode)),
	)

	s.eventBus.Publish(Event{
		Type: EventNodesAppended,
		Payload: map[string]any{
			"flowchart_id": payload.FlowchartID,
			"node_ids":     nodeIDs,
		},
	})

	return nil
}

// UpdateNodePosition persists one node's position
func (s *FlowchartService) UpdateNodePosition(ctx context.Context, upd domain.PositionUpdate) error {
	if err := s.validate.Struct(upd); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	n, err := s.repo.UpdateNodePosition(ctx, upd.NodeID, upd.Position)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("node %s: %w", upd.NodeID, ErrNotFound)
	}

	s.eventBus.Publish(Event{
		Type: EventPositionUpdated,
		Payload: map[string]any{
			"node_id":  upd.NodeID,
			"position": upd.Position,
		},
	})

	return nil
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Flowcharts int    `json:"flowcharts"`
	Nodes      int    `json:"nodes"`
	Edges      int    `json:"edges"`
	Format     string `json:"format"`
}

// Import replaces all flowcharts with the contents of a seed file
func (s *FlowchartService) Import(ctx context.Context, r io.Reader, importer codec.Importer) (*ImportResult, error) {
	list, err := importer.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.repo.ImportFlowcharts(ctx, list); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	result := &ImportResult{Flowcharts: len(list), Format: importer.Format()}
	for _, fg := range list {
		result.Nodes += len(fg.Nodes)
		result.Edges += len(fg.Edges)
	}

	s.eventBus.Publish(Event{
		Type:    EventFlowchartsReloaded,
		Payload: result,
	})

	return result, nil
}

// Validation helpers

func (s *FlowchartService) validateAppend(payload domain.AppendPayload) error {
	if err := s.validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	seen := make(map[string]bool, len(payload.Nodes))
	for i, n := range payload.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node %d has no id", ErrValidation, i)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: node %s appears twice", ErrConflict, n.ID)
		}
		seen[n.ID] = true
		if !n.Kind.OrDefault().Valid() {
			return fmt.Errorf("%w: node %s has unknown type %q", ErrValidation, n.ID, n.Kind)
		}
	}
	for i, e := range payload.Edges {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("%w: edge %d needs a source and a target", ErrValidation, i)
		}
	}
	return nil
}
