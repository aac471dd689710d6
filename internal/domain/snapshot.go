package domain

import "time"

// Snapshot is one full read of the authoritative topology state
type Snapshot struct {
	Nodes     []Node          `json:"nodes" yaml:"nodes"`
	Edges     []Edge          `json:"edges" yaml:"edges"`
	Summary   IncidentSummary `json:"incident_summary" yaml:"incident_summary"`
	FetchedAt time.Time       `json:"fetched_at" yaml:"-"`
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Nodes: make([]Node, 0),
		Edges: make([]Edge, 0),
	}
}

// AddNode adds a node to the snapshot
func (s *Snapshot) AddNode(node Node) {
	s.Nodes = append(s.Nodes, node)
}

// AddEdge adds an edge to the snapshot
func (s *Snapshot) AddEdge(edge Edge) {
	s.Edges = append(s.Edges, edge)
}

// NodeIndex returns the snapshot's nodes keyed by id
func (s *Snapshot) NodeIndex() map[string]*Node {
	index := make(map[string]*Node, len(s.Nodes))
	for i := range s.Nodes {
		index[s.Nodes[i].ID] = &s.Nodes[i]
	}
	return index
}

// Edge returns the edge with the given id, if present
func (s *Snapshot) Edge(id string) (*Edge, bool) {
	for i := range s.Edges {
		if s.Edges[i].ID == id {
			return &s.Edges[i], true
		}
	}
	return nil, false
}

// EdgeIDs returns the set of edge ids observed in the snapshot
func (s *Snapshot) EdgeIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		ids[e.ID] = struct{}{}
	}
	return ids
}
