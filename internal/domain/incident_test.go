package domain

import "testing"

func TestAnnotateEdges(t *testing.T) {
	edges := []Edge{
		*NewEdge("e1", "P-1", "n1", "n2"),
		*NewEdge("e2", "P-2", "n2", "n3"),
		*NewEdge("e3", "P-3", "n3", "n4"),
	}
	incidents := []Incident{
		{ID: "i1", EdgeID: "e1", Severity: SeverityMedium, State: IncidentStateOpen},
		{ID: "i2", EdgeID: "e1", Severity: SeverityCritical, State: IncidentStateOpen},
		{ID: "i3", EdgeID: "e2", Severity: SeverityLow, State: IncidentStateAcknowledged},
		{ID: "i4", EdgeID: "e3", Severity: SeverityHigh, State: IncidentStateResolved},
		{ID: "i5", EdgeID: "gone", Severity: SeverityHigh, State: IncidentStateOpen},
	}

	summary := AnnotateEdges(edges, incidents)

	if summary.TotalActive != 4 {
		t.Errorf("expected 4 active incidents, got %d", summary.TotalActive)
	}
	if summary.EdgesWithIncidents != 2 {
		t.Errorf("expected 2 edges with incidents, got %d", summary.EdgesWithIncidents)
	}

	t.Run("highest severity wins", func(t *testing.T) {
		if edges[0].Severity != SeverityCritical {
			t.Errorf("expected critical, got %s", edges[0].Severity)
		}
		if edges[0].HasAcknowledgedIncidents {
			t.Error("e1 has no acknowledged incidents")
		}
	})

	t.Run("acknowledged incident sets flag", func(t *testing.T) {
		if edges[1].Severity != SeverityLow {
			t.Errorf("expected low, got %s", edges[1].Severity)
		}
		if !edges[1].HasAcknowledgedIncidents {
			t.Error("expected acknowledged flag on e2")
		}
	})

	t.Run("resolved incidents are ignored", func(t *testing.T) {
		if edges[2].Severity.Present() {
			t.Errorf("expected no severity on e3, got %s", edges[2].Severity)
		}
	})
}
