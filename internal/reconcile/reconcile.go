// Package reconcile merges the latest topology snapshot with the override
// ledger into the graph the dashboard draws.
//
// Edge display precedence, highest first:
//
//  1. pinned by an override       -> isolated color, dashed
//  2. status isolated             -> isolated color, dashed
//  3. status closed               -> closed color, solid
//  4. incident severity present   -> severity color, dashed only when the
//     edge has acknowledged-but-unresolved incidents
//  5. otherwise                   -> normal color, solid
//
// Node color depends on node type only. Edges whose endpoints do not resolve
// to a known node are left out of the result.
package reconcile

import "hydrotwin/internal/domain"

// Pinned reports whether an edge carries an unconfirmed override.
// *override.Ledger satisfies it.
type Pinned interface {
	Has(edgeID string) bool
}

// noPins is used when no ledger is supplied
type noPins struct{}

func (noPins) Has(string) bool { return false }

// Reconciler applies the precedence policy with a fixed palette
type Reconciler struct {
	palette Palette
}

// New creates a reconciler. Empty palette fields fall back to the defaults.
func New(palette Palette) *Reconciler {
	return &Reconciler{palette: palette.Merge(DefaultPalette())}
}

// Palette returns the colors in use
func (r *Reconciler) Palette() Palette {
	return r.palette
}

// Reconcile produces the renderable graph. It does not modify its inputs and
// returns the same result for the same inputs.
func (r *Reconciler) Reconcile(snap *domain.Snapshot, pinned Pinned) *domain.Graph {
	if pinned == nil {
		pinned = noPins{}
	}

	graph := &domain.Graph{
		Nodes: make([]domain.NodeStyle, 0),
		Edges: make([]domain.EdgeView, 0),
	}
	if snap == nil {
		return graph
	}

	graph.Summary = snap.Summary
	graph.Stats.TotalNodes = len(snap.Nodes)
	graph.Stats.TotalPipes = len(snap.Edges)

	positions := make(map[string]domain.Position, len(snap.Nodes))
	for i := range snap.Nodes {
		node := &snap.Nodes[i]
		positions[node.ID] = node.Position()
		graph.Nodes = append(graph.Nodes, r.NodeStyle(node))
	}

	for i := range snap.Edges {
		edge := &snap.Edges[i]
		from, okFrom := positions[edge.FromNodeID]
		to, okTo := positions[edge.ToNodeID]
		if !okFrom || !okTo {
			graph.Dropped = append(graph.Dropped, edge.ID)
			continue
		}

		isPinned := pinned.Has(edge.ID)
		if isPinned || edge.IsIsolated() {
			graph.Stats.Isolated++
		}

		color, dashed := r.EdgeStyle(edge, isPinned)
		graph.Edges = append(graph.Edges, domain.EdgeView{
			ID:         edge.ID,
			Name:       edge.Name,
			Status:     edge.Status,
			From:       from,
			To:         to,
			Color:      color,
			Dashed:     dashed,
			Overridden: isPinned && !edge.IsIsolated(),
			DiameterMM: edge.DiameterMM,
			LengthM:    edge.LengthM,
			FlowLPS:    edge.FlowLPS,
		})
	}

	return graph
}

// EdgeStyle applies the precedence table to a single edge
func (r *Reconciler) EdgeStyle(edge *domain.Edge, pinned bool) (color string, dashed bool) {
	switch {
	case pinned:
		return r.palette.Isolated, true
	case edge.Status == domain.EdgeStatusIsolated:
		return r.palette.Isolated, true
	case edge.Status == domain.EdgeStatusClosed:
		return r.palette.Closed, false
	case edge.Severity.Present():
		return r.palette.SeverityColor(edge.Severity), edge.HasAcknowledgedIncidents
	default:
		return r.palette.Normal, false
	}
}

// NodeStyle derives the display style of a node
func (r *Reconciler) NodeStyle(node *domain.Node) domain.NodeStyle {
	style := domain.NodeStyle{
		ID:       node.ID,
		Name:     node.Name,
		Type:     node.Type,
		Position: node.Position(),
		Color:    r.palette.NodeColor(node.Type),
	}
	if node.HasPressure() {
		psi := *node.Pressure
		style.Pressure = &psi
	}
	return style
}
