package sqlite

import (
	"database/sql"

	"hydrotwin/internal/domain"
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

// nullToFloatPtr converts sql.NullFloat64 to *float64
func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		v := nf.Float64
		return &v
	}
	return nil
}

// floatPtrToNull converts *float64 to sql.NullFloat64
func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
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
// 5. Update upsertNode() if column should be writable
// 6. Add migration in sqlite.go migrate() using addColumnIfNotExists()
// 7. Update relevant tests
//
// CRITICAL: Column order must match between:
// - nodeColumns constant
// - scanArgs() return slice
// - All SELECT queries using nodeColumns
//
// Same pattern applies to edges and incidents.

// ============================================================================
// Node Row Scanner
// ============================================================================

const nodeColumns = `id, name, type, x, y, pressure, elevation`

// nodeRow holds all columns from a node query for scanning
type nodeRow struct {
	ID        string
	Name      string
	Type      string
	X         float64
	Y         float64
	Pressure  sql.NullFloat64
	Elevation sql.NullFloat64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match nodeColumns order exactly
func (r *nodeRow) scanArgs() []any {
	return []any{&r.ID, &r.Name, &r.Type, &r.X, &r.Y, &r.Pressure, &r.Elevation}
}

func (r *nodeRow) toDomain() domain.Node {
	n := domain.Node{
		ID:       r.ID,
		Name:     r.Name,
		Type:     domain.NodeType(r.Type),
		X:        r.X,
		Y:        r.Y,
		Pressure: nullToFloatPtr(r.Pressure),
	}
	if r.Elevation.Valid {
		n.Elevation = r.Elevation.Float64
	}
	return n
}

// ============================================================================
// Edge Row Scanner
// ============================================================================

const edgeColumns = `id, name, status, from_node_id, to_node_id, diameter_mm, length_m, flow_lps`

// edgeRow holds all columns from an edge query for scanning
type edgeRow struct {
	ID         string
	Name       string
	Status     string
	FromNodeID string
	ToNodeID   string
	DiameterMM sql.NullFloat64
	LengthM    sql.NullFloat64
	FlowLPS    sql.NullFloat64
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match edgeColumns order exactly
func (r *edgeRow) scanArgs() []any {
	return []any{&r.ID, &r.Name, &r.Status, &r.FromNodeID, &r.ToNodeID, &r.DiameterMM, &r.LengthM, &r.FlowLPS}
}

func (r *edgeRow) toDomain() domain.Edge {
	e := domain.Edge{
		ID:         r.ID,
		Name:       r.Name,
		Status:     domain.EdgeStatus(r.Status),
		FromNodeID: r.FromNodeID,
		ToNodeID:   r.ToNodeID,
		FlowLPS:    nullToFloatPtr(r.FlowLPS),
	}
	if r.DiameterMM.Valid {
		e.DiameterMM = r.DiameterMM.Float64
	}
	if r.LengthM.Valid {
		e.LengthM = r.LengthM.Float64
	}
	return e
}

// ============================================================================
// Incident Row Scanner
// ============================================================================

const incidentColumns = `id, edge_id, title, severity, state`

// incidentRow holds all columns from an incident query for scanning
type incidentRow struct {
	ID       string
	EdgeID   string
	Title    sql.NullString
	Severity string
	State    string
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match incidentColumns order exactly
func (r *incidentRow) scanArgs() []any {
	return []any{&r.ID, &r.EdgeID, &r.Title, &r.Severity, &r.State}
}

func (r *incidentRow) toDomain() domain.Incident {
	return domain.Incident{
		ID:       r.ID,
		EdgeID:   r.EdgeID,
		Title:    nullToString(r.Title),
		Severity: domain.Severity(r.Severity),
		State:    domain.IncidentState(r.State),
	}
}
