package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"flowchart/internal/domain"
	"flowchart/internal/repository"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

var _ repository.Repository = (*Repository)(nil)

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flowcharts (
		id TEXT PRIMARY KEY,
		title TEXT,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS nodes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		flowchart_id TEXT NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'default',
		label TEXT,
		data JSON,
		position_x REAL NOT NULL DEFAULT 0,
		position_y REAL NOT NULL DEFAULT 0,
		parent_node_key TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (flowchart_id, id),
		FOREIGN KEY (flowchart_id) REFERENCES flowcharts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS edges (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		flowchart_id TEXT NOT NULL,
		id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		label TEXT,
		type TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (flowchart_id, id),
		FOREIGN KEY (flowchart_id) REFERENCES flowcharts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_id ON nodes(id);
	CREATE INDEX IF NOT EXISTS idx_edges_flowchart ON edges(flowchart_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ListFlowcharts loads every flowchart with its nodes in arrival order.
// Rows are read one table at a time so a single connection suffices.
func (r *Repository) ListFlowcharts(ctx context.Context) ([]domain.FlowchartGraph, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description FROM flowcharts ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flowcharts: %w", err)
	}

	var list []domain.FlowchartGraph
	index := make(map[string]int)
	for rows.Next() {
		var (
			id                 string
			title, description sql.NullString
		)
		if err := rows.Scan(&id, &title, &description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan flowchart: %w", err)
		}
		index[id] = len(list)
		list = append(list, domain.FlowchartGraph{
			Flowchart: domain.Flowchart{ID: id, Title: nullToString(title), Description: nullToString(description)},
			Nodes:     []domain.Node{},
			Edges:     []domain.Edge{},
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flowcharts: %w", err)
	}

	nodes, err := r.queryNodes(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if i, ok := index[n.flowchartID]; ok {
			list[i].Nodes = append(list[i].Nodes, n.node)
		}
	}

	edges, err := r.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if i, ok := index[e.flowchartID]; ok {
			list[i].Edges = append(list[i].Edges, e.edge)
		}
	}

	if list == nil {
		list = []domain.FlowchartGraph{}
	}
	return list, nil
}

// GetFlowchart retrieves a single flowchart, nil when it does not exist
func (r *Repository) GetFlowchart(ctx context.Context, id string) (*domain.FlowchartGraph, error) {
	var title, description sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT title, description FROM flowcharts WHERE id = ?
	`, id).Scan(&title, &description)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query flowchart: %w", err)
	}

	fg := &domain.FlowchartGraph{
		Flowchart: domain.Flowchart{ID: id, Title: nullToString(title), Description: nullToString(description)},
		Nodes:     []domain.Node{},
		Edges:     []domain.Edge{},
	}

	nodes, err := r.queryNodes(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE flowchart_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		fg.Nodes = append(fg.Nodes, n.node)
	}

	edges, err := r.queryEdges(ctx, `SELECT `+edgeColumns+` FROM edges WHERE flowchart_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		fg.Edges = append(fg.Edges, e.edge)
	}

	return fg, nil
}

type scannedNode struct {
	flowchartID string
	node        domain.Node
}

func (r *Repository) queryNodes(ctx context.Context, query string, args ...any) ([]scannedNode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var out []scannedNode
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, scannedNode{flowchartID: row.FlowchartID, node: node})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return out, nil
}

type scannedEdge struct {
	flowchartID string
	edge        domain.Edge
}

func (r *Repository) queryEdges(ctx context.Context, query string, args ...any) ([]scannedEdge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []scannedEdge
	for rows.Next() {
		var row edgeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		out = append(out, scannedEdge{flowchartID: row.FlowchartID, edge: row.toDomain()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return out, nil
}

// UpsertFlowchart inserts or updates a flowchart's title and description
func (r *Repository) UpsertFlowchart(ctx context.Context, f domain.Flowchart) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO flowcharts (id, title, description, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP
	`, f.ID, stringToNull(f.Title), stringToNull(f.Description))
	if err != nil {
		return fmt.Errorf("failed to upsert flowchart: %w", err)
	}
	return nil
}

// DeleteFlowchart removes a flowchart with its nodes and edges
func (r *Repository) DeleteFlowchart(ctx context.Context, id string) error {
	// Nodes and edges are deleted by CASCADE
	res, err := r.db.ExecContext(ctx, `DELETE FROM flowcharts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flowchart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("flowchart %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

// AppendToFlowchart adds nodes and edges to an existing flowchart in one
// transaction. Node and edge ids already used in the flowchart are rejected
// with repository.ErrDuplicate; edge endpoints are not checked.
func (r *Repository) AppendToFlowchart(ctx context.Context, flowchartID string, nodes []domain.Node, edges []domain.Edge) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM flowcharts WHERE id = ?`, flowchartID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check flowchart: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("flowchart %s: %w", flowchartID, repository.ErrNotFound)
	}

	if err := insertGraph(ctx, tx, flowchartID, nodes, edges); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE flowcharts SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, flowchartID); err != nil {
		return fmt.Errorf("failed to touch flowchart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertGraph writes nodes then edges inside tx
func insertGraph(ctx context.Context, tx *sql.Tx, flowchartID string, nodes []domain.Node, edges []domain.Edge) error {
	nodeStmt, err := tx.PrepareContext(ctx, nodeInsert)
	if err != nil {
		return fmt.Errorf("failed to prepare node statement: %w", err)
	}
	defer nodeStmt.Close()

	for _, node := range nodes {
		var taken int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM nodes WHERE flowchart_id = ? AND id = ?
		`, flowchartID, node.ID).Scan(&taken); err != nil {
			return fmt.Errorf("failed to check node %s: %w", node.ID, err)
		}
		if taken > 0 {
			return fmt.Errorf("node %s: %w", node.ID, repository.ErrDuplicate)
		}

		args, err := nodeInsertArgs(flowchartID, node)
		if err != nil {
			return err
		}
		if _, err := nodeStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, edgeInsert)
	if err != nil {
		return fmt.Errorf("failed to prepare edge statement: %w", err)
	}
	defer edgeStmt.Close()

	for _, edge := range edges {
		id := edgeRowID(edge)
		var taken int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM edges WHERE flowchart_id = ? AND id = ?
		`, flowchartID, id).Scan(&taken); err != nil {
			return fmt.Errorf("failed to check edge %s: %w", id, err)
		}
		if taken > 0 {
			return fmt.Errorf("edge %s: %w", id, repository.ErrDuplicate)
		}

		if _, err := edgeStmt.ExecContext(ctx, edgeInsertArgs(flowchartID, edge)...); err != nil {
			return fmt.Errorf("failed to insert edge %s: %w", id, err)
		}
	}
	return nil
}

// UpdateNodePosition moves every node with the given id. Position updates
// carry no flowchart id, so a node id shared by several flowcharts moves in
// all of them.
func (r *Repository) UpdateNodePosition(ctx context.Context, nodeID string, pos domain.Position) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE nodes SET position_x = ?, position_y = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, pos.X, pos.Y, nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to update position for %s: %w", nodeID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// ImportFlowcharts replaces all flowcharts with the provided list
func (r *Repository) ImportFlowcharts(ctx context.Context, list []domain.FlowchartGraph) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear existing data (order matters due to foreign keys)
	for _, table := range []string{"edges", "nodes", "flowcharts"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, fg := range list {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO flowcharts (id, title, description) VALUES (?, ?, ?)
		`, fg.Flowchart.ID, stringToNull(fg.Flowchart.Title), stringToNull(fg.Flowchart.Description)); err != nil {
			return fmt.Errorf("failed to insert flowchart %s: %w", fg.Flowchart.ID, err)
		}
		if err := insertGraph(ctx, tx, fg.Flowchart.ID, fg.Nodes, fg.Edges); err != nil {
			return fmt.Errorf("flowchart %s: %w", fg.Flowchart.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES ('last_import', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, fmt.Sprintf(`"%s"`, time.Now().Format(time.RFC3339))); err != nil {
		return fmt.Errorf("failed to store import timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUser retrieves a user by email, nil when unknown
func (r *Repository) GetUser(ctx context.Context, email string) (*domain.User, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT password_hash FROM users WHERE email = ?
	`, email).Scan(&hash)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &domain.User{Email: email, PasswordHash: hash}, nil
}

// UpsertUser inserts a user or replaces its password hash
func (r *Repository) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET password_hash = excluded.password_hash
	`, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
