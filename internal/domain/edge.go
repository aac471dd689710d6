package domain

// EdgeStatus represents the operational state of a pipe
type EdgeStatus string

const (
	EdgeStatusOpen     EdgeStatus = "open"
	EdgeStatusClosed   EdgeStatus = "closed"
	EdgeStatusIsolated EdgeStatus = "isolated"
)

// Valid reports whether s is one of the known edge statuses
func (s EdgeStatus) Valid() bool {
	switch s {
	case EdgeStatusOpen, EdgeStatusClosed, EdgeStatusIsolated:
		return true
	}
	return false
}

// Severity is the incident-derived severity annotation of an edge
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is more severe. Unknown values rank as none.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Present reports whether the severity annotates an active incident
func (s Severity) Present() bool {
	return s.Rank() > 0
}

// MaxSeverity returns the more severe of a and b
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Edge represents a pipe between two nodes
type Edge struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Status     EdgeStatus `json:"status" yaml:"status"`
	FromNodeID string     `json:"from_node_id" yaml:"from_node_id"`
	ToNodeID   string     `json:"to_node_id" yaml:"to_node_id"`

	// Incident annotations (derived by the incident service)
	Severity                 Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	HasAcknowledgedIncidents bool     `json:"has_acknowledged_incidents,omitempty" yaml:"has_acknowledged_incidents,omitempty"`

	// Physical attributes, shown in popups only
	DiameterMM float64  `json:"diameter_mm,omitempty" yaml:"diameter_mm,omitempty"`
	LengthM    float64  `json:"length_m,omitempty" yaml:"length_m,omitempty"`
	FlowLPS    *float64 `json:"flow_lps,omitempty" yaml:"flow_lps,omitempty"`
}

// NewEdge creates an open edge between two nodes
func NewEdge(id, name, fromID, toID string) *Edge {
	return &Edge{
		ID:         id,
		Name:       name,
		Status:     EdgeStatusOpen,
		FromNodeID: fromID,
		ToNodeID:   toID,
	}
}

// IsIsolated reports whether the authoritative status is isolated
func (e *Edge) IsIsolated() bool {
	return e.Status == EdgeStatusIsolated
}
