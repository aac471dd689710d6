package domain

// IncidentSummary holds aggregate incident counters shown alongside the map.
// It is display data only and never merged into edge identity.
type IncidentSummary struct {
	TotalActive        int `json:"total_active" yaml:"total_active"`
	EdgesWithIncidents int `json:"edges_with_incidents" yaml:"edges_with_incidents"`
}

// IncidentState is the lifecycle state of an incident event
type IncidentState string

const (
	IncidentStateOpen         IncidentState = "open"
	IncidentStateAcknowledged IncidentState = "acknowledged"
	IncidentStateResolved     IncidentState = "resolved"
)

// Active reports whether the incident still counts against the network
func (s IncidentState) Active() bool {
	return s == IncidentStateOpen || s == IncidentStateAcknowledged
}

// Incident is an event raised against a pipe by the incident service
type Incident struct {
	ID       string        `json:"id" yaml:"id"`
	EdgeID   string        `json:"edge_id" yaml:"edge_id"`
	Title    string        `json:"title" yaml:"title"`
	Severity Severity      `json:"severity" yaml:"severity"`
	State    IncidentState `json:"state" yaml:"state"`
}

// AnnotateEdges derives the per-edge severity and acknowledged flag from a set
// of incidents and returns the summary counters. Edges are modified in place.
func AnnotateEdges(edges []Edge, incidents []Incident) IncidentSummary {
	byEdge := make(map[string]int, len(edges))
	for i := range edges {
		edges[i].Severity = ""
		edges[i].HasAcknowledgedIncidents = false
		byEdge[edges[i].ID] = i
	}

	var summary IncidentSummary
	touched := make(map[string]struct{})
	for _, inc := range incidents {
		if !inc.State.Active() {
			continue
		}
		summary.TotalActive++

		i, ok := byEdge[inc.EdgeID]
		if !ok {
			continue
		}
		touched[inc.EdgeID] = struct{}{}
		edges[i].Severity = MaxSeverity(edges[i].Severity, inc.Severity)
		if inc.State == IncidentStateAcknowledged {
			edges[i].HasAcknowledgedIncidents = true
		}
	}
	summary.EdgesWithIncidents = len(touched)

	return summary
}
