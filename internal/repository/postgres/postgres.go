// Package postgres reads the network topology from the managed Postgres
// backend and listens for edge changes with LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"hydrotwin/internal/changes"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/repository"
)

// DefaultChannel is the notification channel edge updates are sent on
const DefaultChannel = "edge_changes"

// Store implements repository.Store against the backend's nodes, edges and
// events tables
type Store struct {
	pool    *pgxpool.Pool
	channel string
	now     func() time.Time
}

var _ repository.Store = (*Store)(nil)

// ParseConfig parses a DSN and applies the pool settings
func ParseConfig(dsn string) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// the listener holds one connection for as long as it is subscribed
	config.MaxConns = 8
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	return config, nil
}

// New connects to the database and verifies it is reachable. Notifications
// for status updates are sent on channel (DefaultChannel when empty).
func New(ctx context.Context, dsn, channel string) (*Store, error) {
	config, err := ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if channel == "" {
		channel = DefaultChannel
	}
	return &Store{pool: pool, channel: channel, now: time.Now}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Notifier returns a change channel listening on the store's pool
func (s *Store) Notifier() *Notifier {
	return NewNotifier(s.pool, s.channel, nil)
}

const (
	selectNodes = `
		SELECT id::text, name, type::text, x, y, pressure, COALESCE(elevation, 0)
		FROM nodes ORDER BY id`

	selectEdges = `
		SELECT id::text, name, status::text, from_node_id::text, to_node_id::text,
		       COALESCE(diameter_mm, 0), COALESCE(length_m, 0), flow_lps
		FROM edges`

	selectIncidents = `
		SELECT id::text, asset_ref, title, severity::text, state::text
		FROM events
		WHERE asset_type = 'edge' AND asset_ref IS NOT NULL`
)

// FetchTopology reads nodes, edges and incident events concurrently and
// returns an annotated snapshot
func (s *Store) FetchTopology(ctx context.Context) (*domain.Snapshot, error) {
	var (
		nodes     []domain.Node
		edges     []domain.Edge
		incidents []domain.Incident
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = s.queryNodes(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = s.queryEdges(gCtx, selectEdges+" ORDER BY id")
		return err
	})
	g.Go(func() error {
		var err error
		incidents, err = s.queryIncidents(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := domain.NewSnapshot()
	snap.Nodes = nodes
	snap.Edges = edges
	snap.Summary = domain.AnnotateEdges(snap.Edges, incidents)
	snap.FetchedAt = s.now()
	return snap, nil
}

func (s *Store) queryNodes(ctx context.Context) ([]domain.Node, error) {
	rows, err := s.pool.Query(ctx, selectNodes)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	nodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Node, error) {
		var (
			n    domain.Node
			kind string
		)
		err := row.Scan(&n.ID, &n.Name, &kind, &n.X, &n.Y, &n.Pressure, &n.Elevation)
		n.Type = domain.NodeType(kind)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}
	return nodes, nil
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]domain.Edge, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	edges, err := pgx.CollectRows(rows, scanEdge)
	if err != nil {
		return nil, fmt.Errorf("failed to scan edges: %w", err)
	}
	return edges, nil
}

func scanEdge(row pgx.CollectableRow) (domain.Edge, error) {
	var (
		e      domain.Edge
		status string
	)
	err := row.Scan(&e.ID, &e.Name, &status, &e.FromNodeID, &e.ToNodeID, &e.DiameterMM, &e.LengthM, &e.FlowLPS)
	e.Status = domain.EdgeStatus(status)
	return e, err
}

func (s *Store) queryIncidents(ctx context.Context) ([]domain.Incident, error) {
	rows, err := s.pool.Query(ctx, selectIncidents)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	incidents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Incident, error) {
		var (
			inc             domain.Incident
			severity, state string
		)
		err := row.Scan(&inc.ID, &inc.EdgeID, &inc.Title, &severity, &state)
		inc.Severity = domain.Severity(severity)
		inc.State = domain.IncidentState(state)
		return inc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan incidents: %w", err)
	}
	return incidents, nil
}

// GetEdge returns a single edge without incident annotations
func (s *Store) GetEdge(ctx context.Context, id string) (*domain.Edge, error) {
	edges, err := s.queryEdges(ctx, selectEdges+" WHERE id::text = $1", id)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("edge %s: %w", id, repository.ErrNotFound)
	}
	return &edges[0], nil
}

// UpdateEdgeStatus sets an edge's status and notifies listeners in the same
// transaction, so the notification is only delivered if the update commits
func (s *Store) UpdateEdgeStatus(ctx context.Context, id string, status domain.EdgeStatus) (domain.EdgeStatus, error) {
	if !status.Valid() {
		return "", fmt.Errorf("invalid edge status %q", status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var old, name string
	err = tx.QueryRow(ctx, `SELECT status::text, name FROM edges WHERE id::text = $1 FOR UPDATE`, id).Scan(&old, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("edge %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read edge status: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE edges SET status = $2, updated_at = now() WHERE id::text = $1`, id, string(status)); err != nil {
		return "", fmt.Errorf("failed to update edge status: %w", err)
	}

	payload, err := json.Marshal(changes.UpdatePayload(id, name, domain.EdgeStatus(old), status))
	if err != nil {
		return "", fmt.Errorf("failed to encode notification: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload)); err != nil {
		return "", fmt.Errorf("failed to notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return domain.EdgeStatus(old), nil
}
