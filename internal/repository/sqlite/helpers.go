package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"flowchart/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target any) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals a value to nullable JSON text.
// Returns empty NullString for nil or empty maps.
func marshalToNull(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Schema Evolution Guide
// ============================================================================
//
// To add a new column to the nodes table:
// 1. Add field to nodeRow struct (below)
// 2. Update scanArgs() - APPEND to end to match column order
// 3. Update nodeColumns constant - APPEND to end
// 4. Update toDomain() to map new field to domain.Node
// 5. Update nodeInsertArgs() and nodeInsert if the column is writable
// 6. Add migration in sqlite.go migrate()
//
// CRITICAL: Column order must match between nodeColumns, scanArgs() and
// every SELECT using nodeColumns. Same pattern applies to edges.

// ============================================================================
// Node Row Scanner
// ============================================================================

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	FlowchartID   string
	ID            string
	Type          string
	Label         sql.NullString
	DataJSON      sql.NullString
	PositionX     float64
	PositionY     float64
	ParentNodeKey sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nodeColumns order exactly:
// flowchart_id, id, type, label, data, position_x, position_y, parent_node_key
func (r *nodeRow) scanArgs() []any {
	return []any{
		&r.FlowchartID,   // 1
		&r.ID,            // 2
		&r.Type,          // 3
		&r.Label,         // 4
		&r.DataJSON,      // 5
		&r.PositionX,     // 6
		&r.PositionY,     // 7
		&r.ParentNodeKey, // 8
	}
}

// toDomain converts the scanned row to a domain.Node
func (r *nodeRow) toDomain() (domain.Node, error) {
	node := domain.Node{
		ID:             r.ID,
		Kind:           domain.NodeKind(r.Type).OrDefault(),
		Label:          nullToString(r.Label),
		Position:       domain.Position{X: r.PositionX, Y: r.PositionY},
		ParentRelation: nullToString(r.ParentNodeKey),
	}

	if err := unmarshalJSONField(r.DataJSON, &node.Data); err != nil {
		return domain.Node{}, fmt.Errorf("unmarshal data of node %s: %w", r.ID, err)
	}
	if node.Data == nil {
		node.Data = map[string]any{}
	}
	node.Data["label"] = node.Label

	return node, nil
}

// nodeColumns is the SELECT column list for node queries
const nodeColumns = `flowchart_id, id, type, label, data, position_x, position_y, parent_node_key`

// ============================================================================
// Edge Row Scanner
// ============================================================================

// edgeRow holds all columns from an edge query for scanning
type edgeRow struct {
	FlowchartID string
	ID          string
	SourceID    string
	TargetID    string
	Label       sql.NullString
	Type        sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match edgeColumns order exactly:
// flowchart_id, id, source_id, target_id, label, type
func (r *edgeRow) scanArgs() []any {
	return []any{
		&r.FlowchartID, // 1
		&r.ID,          // 2
		&r.SourceID,    // 3
		&r.TargetID,    // 4
		&r.Label,       // 5
		&r.Type,        // 6
	}
}

// toDomain converts the scanned row to a domain.Edge
func (r *edgeRow) toDomain() domain.Edge {
	return domain.Edge{
		ID:     r.ID,
		Source: r.SourceID,
		Target: r.TargetID,
		Label:  nullToString(r.Label),
		Kind:   domain.EdgeKind(nullToString(r.Type)),
	}
}

// edgeColumns is the SELECT column list for edge queries
const edgeColumns = `flowchart_id, id, source_id, target_id, label, type`

// ============================================================================
// Write Helpers
// ============================================================================

// nodeInsert writes one node; the seq column keeps arrival order
const nodeInsert = `
	INSERT INTO nodes (flowchart_id, id, type, label, data, position_x, position_y, parent_node_key)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// nodeInsertArgs prepares arguments for nodeInsert
func nodeInsertArgs(flowchartID string, node domain.Node) ([]any, error) {
	data := make(map[string]any, len(node.Data))
	for k, v := range node.Data {
		if k != "label" {
			data[k] = v
		}
	}
	dataJSON, err := marshalToNull(data)
	if err != nil {
		return nil, fmt.Errorf("marshal data of node %s: %w", node.ID, err)
	}

	return []any{
		flowchartID,
		node.ID,
		string(node.Kind.OrDefault()),
		stringToNull(node.Label),
		dataJSON,
		node.Position.X,
		node.Position.Y,
		stringToNull(node.ParentRelation),
	}, nil
}

// edgeInsert writes one edge
const edgeInsert = `
	INSERT INTO edges (flowchart_id, id, source_id, target_id, label, type)
	VALUES (?, ?, ?, ?, ?, ?)
`

// edgeRowID is the id an edge is stored under
func edgeRowID(edge domain.Edge) string {
	if edge.ID == "" {
		return domain.EdgeID(edge.Source, edge.Target)
	}
	return edge.ID
}

// edgeInsertArgs prepares arguments for edgeInsert
func edgeInsertArgs(flowchartID string, edge domain.Edge) []any {
	id := edgeRowID(edge)
	return []any{
		flowchartID,
		id,
		edge.Source,
		edge.Target,
		stringToNull(edge.Label),
		stringToNull(string(edge.Kind)),
	}
}
