package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"flowchart/internal/domain"
	"flowchart/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies on mutation routes
const maxBodyBytes = 1 << 20

// FlowchartHandler handles flowchart API requests
type FlowchartHandler struct {
	svc     *service.FlowchartService
	metrics *Metrics
	logger  *zap.Logger
}

// NewFlowchartHandler creates a new flowchart handler
func NewFlowchartHandler(svc *service.FlowchartService, metrics *Metrics, logger *zap.Logger) *FlowchartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowchartHandler{svc: svc, metrics: metrics, logger: logger}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusResponse is the body of successful mutations
type StatusResponse struct {
	Status string `json:"status"`
}

// storeNode is a node as the store sends it: data is a JSON string
type storeNode struct {
	ID             string          `json:"id"`
	Type           domain.NodeKind `json:"type"`
	Data           string          `json:"data"`
	Position       domain.Position `json:"position"`
	ParentRelation string          `json:"parent_node_key,omitempty"`
}

type storeFlowchart struct {
	Flowchart domain.Flowchart `json:"flowchart"`
	Nodes     []storeNode      `json:"nodes"`
	Edges     []domain.Edge    `json:"edges"`
}

func toStoreNode(n domain.Node) (storeNode, error) {
	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["label"] = n.Label

	raw, err := json.Marshal(data)
	if err != nil {
		return storeNode{}, fmt.Errorf("encode node %s data: %w", n.ID, err)
	}

	return storeNode{
		ID:             n.ID,
		Type:           n.Kind.OrDefault(),
		Data:           string(raw),
		Position:       n.Position,
		ParentRelation: n.ParentRelation,
	}, nil
}

func toStoreFlowchart(fg domain.FlowchartGraph) (storeFlowchart, error) {
	sf := storeFlowchart{
		Flowchart: fg.Flowchart,
		Nodes:     make([]storeNode, 0, len(fg.Nodes)),
		Edges:     fg.Edges,
	}
	if sf.Edges == nil {
		sf.Edges = []domain.Edge{}
	}
	for _, n := range fg.Nodes {
		sn, err := toStoreNode(n)
		if err != nil {
			return storeFlowchart{}, fmt.Errorf("flowchart %s: %w", fg.Flowchart.ID, err)
		}
		sf.Nodes = append(sf.Nodes, sn)
	}
	return sf, nil
}

// ListFlowcharts returns every flowchart with its nodes and edges
func (h *FlowchartHandler) ListFlowcharts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListFlowcharts(r.Context())
	if err != nil {
		h.logger.Error("Failed to list flowcharts", zap.Error(err))
		h.writeError(w, "Failed to list flowcharts", err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]storeFlowchart, 0, len(list))
	for _, fg := range list {
		sf, err := toStoreFlowchart(fg)
		if err != nil {
			h.logger.Error("Failed to encode flowchart", zap.Error(err))
			h.writeError(w, "Failed to list flowcharts", err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, sf)
	}

	h.writeJSON(w, out, http.StatusOK)
}

// GetFlowchart returns one flowchart in the list element shape
func (h *FlowchartHandler) GetFlowchart(w http.ResponseWriter, r *http.Request) {
	fg, err := h.svc.GetFlowchart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get flowchart", err)
		return
	}

	sf, err := toStoreFlowchart(*fg)
	if err != nil {
		h.logger.Error("Failed to encode flowchart", zap.Error(err))
		h.writeError(w, "Failed to get flowchart", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, sf, http.StatusOK)
}

// SaveFlowchart creates a flowchart or updates its title and description.
// The id comes from the path.
func (h *FlowchartHandler) SaveFlowchart(w http.ResponseWriter, r *http.Request) {
	var f domain.Flowchart
	if !h.decode(w, r, &f) {
		return
	}
	f.ID = chi.URLParam(r, "id")

	if err := h.svc.SaveFlowchart(r.Context(), f); err != nil {
		h.writeServiceError(w, "Failed to save flowchart", err)
		return
	}

	h.logger.Info("Flowchart saved", zap.String("flowchart_id", f.ID), userField(r))
	h.writeJSON(w, StatusResponse{Status: "saved"}, http.StatusOK)
}

// DeleteFlowchart removes a flowchart with its nodes and edges
func (h *FlowchartHandler) DeleteFlowchart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteFlowchart(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to delete flowchart", err)
		return
	}

	h.logger.Info("Flowchart deleted", zap.String("flowchart_id", id), userField(r))
	h.writeJSON(w, StatusResponse{Status: "deleted"}, http.StatusOK)
}

// Append adds nodes and edges to a flowchart
func (h *FlowchartHandler) Append(w http.ResponseWriter, r *http.Request) {
	var payload domain.AppendPayload
	if !h.decode(w, r, &payload) {
		return
	}

	if err := h.svc.Append(r.Context(), payload); err != nil {
		h.writeServiceError(w, "Failed to append", err)
		return
	}

	if h.metrics != nil {
		h.metrics.NodesAppended.Add(float64(len(payload.Nodes)))
		h.metrics.EdgesAppended.Add(float64(len(payload.Edges)))
	}

	h.logger.Info("Append accepted",
		zap.String("flowchart_id", payload.FlowchartID),
		zap.Int("nodes", len(payload.Nodes)),
		userField(r),
	)

	h.writeJSON(w, StatusResponse{Status: "appended"}, http.StatusCreated)
}

// UpdateNodePosition persists a node position
func (h *FlowchartHandler) UpdateNodePosition(w http.ResponseWriter, r *http.Request) {
	var upd domain.PositionUpdate
	if !h.decode(w, r, &upd) {
		return
	}

	if err := h.svc.UpdateNodePosition(r.Context(), upd); err != nil {
		h.writeServiceError(w, "Failed to update node position", err)
		return
	}

	if h.metrics != nil {
		h.metrics.PositionUpdates.Inc()
	}

	h.logger.Debug("Node position updated", zap.String("node_id", upd.NodeID), userField(r))

	h.writeJSON(w, StatusResponse{Status: "updated"}, http.StatusOK)
}

// Health reports liveness
func (h *FlowchartHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, StatusResponse{Status: "healthy"}, http.StatusOK)
}

// Helper methods

func (h *FlowchartHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return decodeBody(w, r, v, h.logger)
}

func (h *FlowchartHandler) writeJSON(w http.ResponseWriter, data any, statusCode int) {
	writeJSON(w, data, statusCode, h.logger)
}

func (h *FlowchartHandler) writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	writeError(w, msg, details, statusCode, h.logger)
}

func (h *FlowchartHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Info(msg, zap.Int("status", status), zap.Error(err))
	}
	h.writeError(w, msg, err.Error(), status)
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any, logger *zap.Logger) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest, logger)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any, statusCode int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("Failed to encode JSON", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, msg, details string, statusCode int, logger *zap.Logger) {
	writeJSON(w, ErrorResponse{Error: msg, Details: details}, statusCode, logger)
}
