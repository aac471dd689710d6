package codec

import (
	"errors"
	"fmt"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/repository"
)

// Check validates a parsed network: ids are present and unique, enums are
// known, and incidents point at edges in the file. Edges whose endpoints are
// missing are allowed; the dashboard leaves them out when drawing.
func Check(network *repository.Network) error {
	var errs []error

	nodes := make(map[string]struct{}, len(network.Nodes))
	for i, n := range network.Nodes {
		switch {
		case n.ID == "":
			errs = append(errs, fmt.Errorf("node %d: missing id", i))
			continue
		case !n.Type.Valid():
			errs = append(errs, fmt.Errorf("node %s: unknown type %q", n.ID, n.Type))
		}
		if _, dup := nodes[n.ID]; dup {
			errs = append(errs, fmt.Errorf("node %s: duplicate id", n.ID))
		}
		nodes[n.ID] = struct{}{}
	}

	edges := make(map[string]struct{}, len(network.Edges))
	for i, e := range network.Edges {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("edge %d: missing id", i))
			continue
		}
		if e.Status != "" && !e.Status.Valid() {
			errs = append(errs, fmt.Errorf("edge %s: unknown status %q", e.ID, e.Status))
		}
		if _, dup := edges[e.ID]; dup {
			errs = append(errs, fmt.Errorf("edge %s: duplicate id", e.ID))
		}
		edges[e.ID] = struct{}{}
	}

	for i, inc := range network.Incidents {
		if inc.ID == "" {
			errs = append(errs, fmt.Errorf("incident %d: missing id", i))
			continue
		}
		if _, ok := edges[inc.EdgeID]; !ok {
			errs = append(errs, fmt.Errorf("incident %s: unknown edge %q", inc.ID, inc.EdgeID))
		}
		if !inc.Severity.Present() {
			errs = append(errs, fmt.Errorf("incident %s: unknown severity %q", inc.ID, inc.Severity))
		}
		switch inc.State {
		case "", domain.IncidentStateOpen, domain.IncidentStateAcknowledged, domain.IncidentStateResolved:
		default:
			errs = append(errs, fmt.Errorf("incident %s: unknown state %q", inc.ID, inc.State))
		}
	}

	return errors.Join(errs...)
}
