// Package sqlite implements the local topology store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/repository"
)

// Repository implements repository.Store using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ repository.Store    = (*Repository)(nil)
	_ repository.Importer = (*Repository)(nil)
)

// New opens (or creates) the database at dbPath and migrates the schema
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if dbPath == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('junction', 'tank', 'reservoir')),
		x REAL NOT NULL,
		y REAL NOT NULL,
		pressure REAL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed', 'isolated')),
		from_node_id TEXT NOT NULL,
		to_node_id TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		edge_id TEXT NOT NULL,
		title TEXT,
		severity TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high', 'critical')),
		state TEXT NOT NULL DEFAULT 'open' CHECK (state IN ('open', 'acknowledged', 'resolved')),
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (edge_id) REFERENCES edges(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_node_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_node_id);
	CREATE INDEX IF NOT EXISTS idx_incidents_edge ON incidents(edge_id);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return err
	}

	// Columns added after the first schema
	migrations := []struct{ table, column, def string }{
		{"nodes", "elevation", "REAL"},
		{"edges", "diameter_mm", "REAL"},
		{"edges", "length_m", "REAL"},
		{"edges", "flow_lps", "REAL"},
	}
	for _, m := range migrations {
		if err := r.addColumnIfNotExists(m.table, m.column, m.def); err != nil {
			return fmt.Errorf("add %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

// addColumnIfNotExists adds a column unless the table already has it
func (r *Repository) addColumnIfNotExists(table, column, def string) error {
	rows, err := r.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = r.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, def))
	return err
}

// Close releases the database handle
func (r *Repository) Close() error {
	return r.db.Close()
}

// FetchTopology reads every node, edge and incident and returns a snapshot
// with incident annotations applied
func (r *Repository) FetchTopology(ctx context.Context) (*domain.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	snap := domain.NewSnapshot()

	nodes, err := queryNodes(ctx, tx)
	if err != nil {
		return nil, err
	}
	snap.Nodes = nodes

	edges, err := queryEdges(ctx, tx, "")
	if err != nil {
		return nil, err
	}
	snap.Edges = edges

	incidents, err := queryIncidents(ctx, tx)
	if err != nil {
		return nil, err
	}

	snap.Summary = domain.AnnotateEdges(snap.Edges, incidents)
	snap.FetchedAt = r.now()
	return snap, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryNodes(ctx context.Context, q querier) ([]domain.Node, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]domain.Node, 0)
	for rows.Next() {
		var row nodeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

func queryEdges(ctx context.Context, q querier, id string) ([]domain.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges`
	var args []any
	if id != "" {
		query += ` WHERE id = ?`
		args = append(args, id)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	edges := make([]domain.Edge, 0)
	for rows.Next() {
		var row edgeRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

func queryIncidents(ctx context.Context, q querier) ([]domain.Incident, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+incidentColumns+` FROM incidents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	incidents := make([]domain.Incident, 0)
	for rows.Next() {
		var row incidentRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}
	return incidents, nil
}

// GetEdge returns a single edge without incident annotations
func (r *Repository) GetEdge(ctx context.Context, id string) (*domain.Edge, error) {
	edges, err := queryEdges(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("edge %s: %w", id, repository.ErrNotFound)
	}
	return &edges[0], nil
}

// UpdateEdgeStatus sets an edge's status and returns the previous one
func (r *Repository) UpdateEdgeStatus(ctx context.Context, id string, status domain.EdgeStatus) (domain.EdgeStatus, error) {
	if !status.Valid() {
		return "", fmt.Errorf("invalid edge status %q", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var old string
	err = tx.QueryRowContext(ctx, `SELECT status FROM edges WHERE id = ?`, id).Scan(&old)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("edge %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read edge status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE edges SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), r.now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return "", fmt.Errorf("failed to update edge status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return domain.EdgeStatus(old), nil
}

// UpsertNode inserts or replaces a node
func (r *Repository) UpsertNode(ctx context.Context, node *domain.Node) error {
	return upsertNode(ctx, r.db, node, r.now())
}

// UpsertEdge inserts or replaces an edge
func (r *Repository) UpsertEdge(ctx context.Context, edge *domain.Edge) error {
	return upsertEdge(ctx, r.db, edge, r.now())
}

// UpsertIncident inserts or replaces an incident record
func (r *Repository) UpsertIncident(ctx context.Context, inc *domain.Incident) error {
	return upsertIncident(ctx, r.db, inc)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertNode(ctx context.Context, db execer, n *domain.Node, at time.Time) error {
	if !n.Type.Valid() {
		return fmt.Errorf("node %s: invalid type %q", n.ID, n.Type)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, type = excluded.type, x = excluded.x, y = excluded.y,
			pressure = excluded.pressure, elevation = excluded.elevation,
			updated_at = excluded.updated_at
	`, n.ID, n.Name, string(n.Type), n.X, n.Y, floatPtrToNull(n.Pressure), n.Elevation,
		at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
	}
	return nil
}

func upsertEdge(ctx context.Context, db execer, e *domain.Edge, at time.Time) error {
	status := e.Status
	if status == "" {
		status = domain.EdgeStatusOpen
	}
	if !status.Valid() {
		return fmt.Errorf("edge %s: invalid status %q", e.ID, e.Status)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO edges (`+edgeColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, status = excluded.status,
			from_node_id = excluded.from_node_id, to_node_id = excluded.to_node_id,
			diameter_mm = excluded.diameter_mm, length_m = excluded.length_m,
			flow_lps = excluded.flow_lps, updated_at = excluded.updated_at
	`, e.ID, e.Name, string(status), e.FromNodeID, e.ToNodeID, e.DiameterMM, e.LengthM,
		floatPtrToNull(e.FlowLPS), at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s: %w", e.ID, err)
	}
	return nil
}

func upsertIncident(ctx context.Context, db execer, inc *domain.Incident) error {
	state := inc.State
	if state == "" {
		state = domain.IncidentStateOpen
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO incidents (`+incidentColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			edge_id = excluded.edge_id, title = excluded.title,
			severity = excluded.severity, state = excluded.state
	`, inc.ID, inc.EdgeID, stringToNull(inc.Title), string(inc.Severity), string(state))
	if err != nil {
		return fmt.Errorf("failed to upsert incident %s: %w", inc.ID, err)
	}
	return nil
}

// ImportNetwork loads a network in one transaction. With replace, existing
// rows are removed first.
func (r *Repository) ImportNetwork(ctx context.Context, network *repository.Network, replace bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		for _, table := range []string{"incidents", "edges", "nodes"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
	}

	at := r.now()
	for i := range network.Nodes {
		if err := upsertNode(ctx, tx, &network.Nodes[i], at); err != nil {
			return err
		}
	}
	for i := range network.Edges {
		if err := upsertEdge(ctx, tx, &network.Edges[i], at); err != nil {
			return err
		}
	}
	for i := range network.Incidents {
		if err := upsertIncident(ctx, tx, &network.Incidents[i]); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES ('last_import', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, fmt.Sprintf("%d nodes, %d edges, %d incidents", len(network.Nodes), len(network.Edges), len(network.Incidents)),
		at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Counts returns the number of stored nodes and edges
func (r *Repository) Counts(ctx context.Context) (nodes, edges int, err error) {
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("failed to count edges: %w", err)
	}
	return nodes, edges, nil
}
