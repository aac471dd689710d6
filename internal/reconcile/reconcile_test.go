package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/override"
)

// pins is a literal Pinned set for table tests
type pins map[string]bool

func (p pins) Has(id string) bool { return p[id] }

func twoNodeSnapshot(edges ...domain.Edge) *domain.Snapshot {
	snap := domain.NewSnapshot()
	snap.AddNode(*domain.NewNode("n1", "J-1", domain.NodeTypeJunction, 37.0, -121.0))
	snap.AddNode(*domain.NewNode("n2", "T-1", domain.NodeTypeTank, 37.1, -121.1))
	for _, e := range edges {
		snap.AddEdge(e)
	}
	return snap
}

func pipe(id string, status domain.EdgeStatus, severity domain.Severity, ack bool) domain.Edge {
	e := domain.NewEdge(id, "P-"+id, "n1", "n2")
	e.Status = status
	e.Severity = severity
	e.HasAcknowledgedIncidents = ack
	return *e
}

func TestEdgeStylePrecedence(t *testing.T) {
	r := New(Palette{})
	p := DefaultPalette()

	tests := []struct {
		name       string
		edge       domain.Edge
		pinned     bool
		wantColor  string
		wantDashed bool
	}{
		{"override beats open", pipe("e", domain.EdgeStatusOpen, "", false), true, p.Isolated, true},
		{"override beats closed", pipe("e", domain.EdgeStatusClosed, "", false), true, p.Isolated, true},
		{"override beats critical severity", pipe("e", domain.EdgeStatusOpen, domain.SeverityCritical, false), true, p.Isolated, true},
		{"isolated status", pipe("e", domain.EdgeStatusIsolated, "", false), false, p.Isolated, true},
		{"isolated beats severity", pipe("e", domain.EdgeStatusIsolated, domain.SeverityHigh, false), false, p.Isolated, true},
		{"closed is solid grey", pipe("e", domain.EdgeStatusClosed, "", false), false, p.Closed, false},
		{"closed beats severity and ack", pipe("e", domain.EdgeStatusClosed, domain.SeverityCritical, true), false, p.Closed, false},
		{"critical severity", pipe("e", domain.EdgeStatusOpen, domain.SeverityCritical, false), false, p.Critical, false},
		{"high severity", pipe("e", domain.EdgeStatusOpen, domain.SeverityHigh, false), false, p.High, false},
		{"medium severity", pipe("e", domain.EdgeStatusOpen, domain.SeverityMedium, false), false, p.Medium, false},
		{"low severity", pipe("e", domain.EdgeStatusOpen, domain.SeverityLow, false), false, p.Low, false},
		{"acknowledged severity is dashed", pipe("e", domain.EdgeStatusOpen, domain.SeverityMedium, true), false, p.Medium, true},
		{"none severity is normal", pipe("e", domain.EdgeStatusOpen, domain.SeverityNone, false), false, p.Normal, false},
		{"ack without severity stays solid", pipe("e", domain.EdgeStatusOpen, "", true), false, p.Normal, false},
		{"plain open", pipe("e", domain.EdgeStatusOpen, "", false), false, p.Normal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			color, dashed := r.EdgeStyle(&tt.edge, tt.pinned)
			assert.Equal(t, tt.wantColor, color)
			assert.Equal(t, tt.wantDashed, dashed)
		})
	}
}

func TestNodeStyleByType(t *testing.T) {
	r := New(Palette{})
	p := DefaultPalette()

	tank := domain.NewNode("t", "Tank", domain.NodeTypeTank, 1, 2).WithPressure(61.25)
	reservoir := domain.NewNode("r", "Res", domain.NodeTypeReservoir, 1, 2)
	junction := domain.NewNode("j", "J", domain.NodeTypeJunction, 1, 2)

	assert.Equal(t, p.Tank, r.NodeStyle(tank).Color)
	assert.Equal(t, p.Reservoir, r.NodeStyle(reservoir).Color)
	assert.Equal(t, p.Junction, r.NodeStyle(junction).Color)

	style := r.NodeStyle(tank)
	require.NotNil(t, style.Pressure)
	assert.Equal(t, 61.25, *style.Pressure)
	assert.Nil(t, r.NodeStyle(junction).Pressure)
}

func TestReconcile_Scenarios(t *testing.T) {
	r := New(Palette{})
	p := DefaultPalette()

	t.Run("E2 open without incident is normal and solid", func(t *testing.T) {
		graph := r.Reconcile(twoNodeSnapshot(pipe("E2", domain.EdgeStatusOpen, "", false)), nil)
		view, ok := graph.Edge("E2")
		require.True(t, ok)
		assert.Equal(t, p.Normal, view.Color)
		assert.False(t, view.Dashed)
	})

	t.Run("E3 high severity without ack is solid", func(t *testing.T) {
		graph := r.Reconcile(twoNodeSnapshot(pipe("E3", domain.EdgeStatusOpen, domain.SeverityHigh, false)), nil)
		view, _ := graph.Edge("E3")
		assert.Equal(t, p.High, view.Color)
		assert.False(t, view.Dashed)
	})

	t.Run("E3 high severity with ack is dashed", func(t *testing.T) {
		graph := r.Reconcile(twoNodeSnapshot(pipe("E3", domain.EdgeStatusOpen, domain.SeverityHigh, true)), nil)
		view, _ := graph.Edge("E3")
		assert.Equal(t, p.High, view.Color)
		assert.True(t, view.Dashed)
	})

	t.Run("E1 push then lagging poll then confirming poll", func(t *testing.T) {
		ledger := override.New()

		open := twoNodeSnapshot(pipe("E1", domain.EdgeStatusOpen, "", false))
		ledger.Confirm(open)
		view, _ := r.Reconcile(open, ledger).Edge("E1")
		assert.Equal(t, p.Normal, view.Color)

		// push arrives before the next poll
		ledger.Put("E1", "P-E1", time.Now())
		view, _ = r.Reconcile(open, ledger).Edge("E1")
		assert.Equal(t, p.Isolated, view.Color)
		assert.True(t, view.Dashed)
		assert.True(t, view.Overridden)

		// next poll still shows open: authoritative value wins, override cleared
		lagging := twoNodeSnapshot(pipe("E1", domain.EdgeStatusOpen, "", false))
		ledger.Confirm(lagging)
		assert.False(t, ledger.Has("E1"))
		view, _ = r.Reconcile(lagging, ledger).Edge("E1")
		assert.Equal(t, p.Normal, view.Color)
		assert.False(t, view.Dashed)

		// poll finally reports isolated
		isolated := twoNodeSnapshot(pipe("E1", domain.EdgeStatusIsolated, "", false))
		ledger.Confirm(isolated)
		view, _ = r.Reconcile(isolated, ledger).Edge("E1")
		assert.Equal(t, p.Isolated, view.Color)
		assert.True(t, view.Dashed)
		assert.False(t, view.Overridden)
		assert.Equal(t, 0, ledger.Len())
	})
}

func TestReconcile_CarriesPhysicalAttributes(t *testing.T) {
	flow := 9.5
	e := pipe("a", domain.EdgeStatusOpen, "", false)
	e.DiameterMM = 250
	e.LengthM = 80
	e.FlowLPS = &flow

	graph := New(Palette{}).Reconcile(twoNodeSnapshot(e), nil)
	view, ok := graph.Edge("a")
	require.True(t, ok)
	assert.Equal(t, 250.0, view.DiameterMM)
	assert.Equal(t, 80.0, view.LengthM)
	require.NotNil(t, view.FlowLPS)
	assert.Equal(t, 9.5, *view.FlowLPS)
}

func TestReconcile_DanglingEndpoints(t *testing.T) {
	r := New(Palette{})

	snap := twoNodeSnapshot(pipe("ok", domain.EdgeStatusOpen, "", false))
	dangling := domain.NewEdge("dangling", "P-d", "n1", "n9")
	snap.AddEdge(*dangling)

	graph := r.Reconcile(snap, nil)
	_, ok := graph.Edge("dangling")
	assert.False(t, ok)
	assert.Equal(t, []string{"dangling"}, graph.Dropped)
	assert.Len(t, graph.Edges, 1)
	assert.Equal(t, 2, graph.Stats.TotalPipes)

	// the missing node shows up in a later snapshot and the edge comes back
	snap.AddNode(*domain.NewNode("n9", "J-9", domain.NodeTypeJunction, 37.2, -121.2))
	graph = r.Reconcile(snap, nil)
	view, ok := graph.Edge("dangling")
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 37.2, Y: -121.2}, view.To)
	assert.Empty(t, graph.Dropped)
}

func TestReconcile_StatsAndSummary(t *testing.T) {
	r := New(Palette{})
	snap := twoNodeSnapshot(
		pipe("a", domain.EdgeStatusIsolated, "", false),
		pipe("b", domain.EdgeStatusOpen, "", false),
		pipe("c", domain.EdgeStatusClosed, "", false),
	)
	snap.Summary = domain.IncidentSummary{TotalActive: 3, EdgesWithIncidents: 1}

	graph := r.Reconcile(snap, pins{"b": true})

	assert.Equal(t, domain.NetworkStats{TotalNodes: 2, TotalPipes: 3, Isolated: 2}, graph.Stats)
	assert.Equal(t, snap.Summary, graph.Summary)
}

func TestReconcile_IsolatedStatSkipsUndrawnEdges(t *testing.T) {
	r := New(Palette{})
	snap := twoNodeSnapshot(pipe("a", domain.EdgeStatusIsolated, "", false))
	reported := domain.NewEdge("gone-isolated", "P-x", "n1", "n9")
	reported.Status = domain.EdgeStatusIsolated
	snap.AddEdge(*reported)
	snap.AddEdge(*domain.NewEdge("gone-pinned", "P-y", "n9", "n2"))

	graph := r.Reconcile(snap, pins{"gone-pinned": true})

	assert.Equal(t, 1, graph.Stats.Isolated)
	assert.Equal(t, 3, graph.Stats.TotalPipes)
	assert.ElementsMatch(t, []string{"gone-isolated", "gone-pinned"}, graph.Dropped)
}

func TestReconcile_NilSnapshot(t *testing.T) {
	graph := New(Palette{}).Reconcile(nil, nil)
	require.NotNil(t, graph)
	assert.Empty(t, graph.Nodes)
	assert.Empty(t, graph.Edges)
}

func TestReconcile_CustomPalette(t *testing.T) {
	r := New(Palette{Isolated: "#000000"})
	assert.Equal(t, "#000000", r.Palette().Isolated)
	assert.Equal(t, DefaultPalette().Normal, r.Palette().Normal)
}
