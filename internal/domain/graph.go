package domain

import "fmt"

// Graph is the derived view the dashboard draws. It is recomputed on every
// reconciliation pass and never persisted.
type Graph struct {
	Nodes   []NodeStyle     `json:"nodes"`
	Edges   []EdgeView      `json:"edges"`
	Summary IncidentSummary `json:"incident_summary"`
	Stats   NetworkStats    `json:"stats"`
	// Dropped lists edges excluded because an endpoint did not resolve
	Dropped []string `json:"dropped,omitempty"`
}

// NodeStyle is the display style of a node
type NodeStyle struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Color    string   `json:"color"`
	Pressure *float64 `json:"pressure,omitempty"`
}

// EdgeView is the renderable state of one edge
type EdgeView struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Status EdgeStatus `json:"status"`
	From   Position   `json:"from"`
	To     Position   `json:"to"`
	Color  string     `json:"color"`
	Dashed bool       `json:"dashed"`
	// Overridden is set when the display status comes from an unconfirmed push
	Overridden bool `json:"overridden,omitempty"`

	// Physical attributes, popup only
	DiameterMM float64  `json:"diameter_mm,omitempty"`
	LengthM    float64  `json:"length_m,omitempty"`
	FlowLPS    *float64 `json:"flow_lps,omitempty"`
}

// DisplayStatus returns the status the view represents
func (v EdgeView) DisplayStatus() EdgeStatus {
	if v.Overridden {
		return EdgeStatusIsolated
	}
	return v.Status
}

// NetworkStats are the counters shown next to the map
type NetworkStats struct {
	TotalNodes int `json:"total_nodes"`
	TotalPipes int `json:"total_pipes"`
	// Isolated counts rendered edges shown as isolated, pinned or reported
	Isolated int `json:"isolated"`
}

// Equal reports whether two graphs would draw identically
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Summary != other.Summary || g.Stats != other.Stats {
		return false
	}
	if len(g.Nodes) != len(other.Nodes) || len(g.Edges) != len(other.Edges) {
		return false
	}
	for i := range g.Nodes {
		if !nodeStyleEqual(g.Nodes[i], other.Nodes[i]) {
			return false
		}
	}
	for i := range g.Edges {
		if !edgeViewEqual(g.Edges[i], other.Edges[i]) {
			return false
		}
	}
	return true
}

func edgeViewEqual(a, b EdgeView) bool {
	af, bf := a.FlowLPS, b.FlowLPS
	a.FlowLPS, b.FlowLPS = nil, nil
	return a == b && floatPtrEqual(af, bf)
}

func nodeStyleEqual(a, b NodeStyle) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Type != b.Type || a.Position != b.Position || a.Color != b.Color {
		return false
	}
	return floatPtrEqual(a.Pressure, b.Pressure)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Edge returns the view for the given edge id, if rendered
func (g *Graph) Edge(id string) (EdgeView, bool) {
	for _, e := range g.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return EdgeView{}, false
}

// PressureLabel formats a pressure reading for popups
func PressureLabel(psi float64) string {
	return fmt.Sprintf("Pressure: %.1f psi", psi)
}
