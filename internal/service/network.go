package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"hydrotwin/internal/changes"
	"hydrotwin/internal/codec"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/logging"
	"hydrotwin/internal/repository"
)

var (
	// ErrInvalid marks a request that failed validation
	ErrInvalid = errors.New("invalid request")

	// ErrImportUnsupported is returned when the store cannot bulk import
	ErrImportUnsupported = errors.New("store does not support import")
)

// Publisher announces edge changes to change-channel subscribers
type Publisher interface {
	Publish(p changes.Payload)
}

// StatusUpdate is a request to change an edge's status
type StatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=open closed isolated"`
}

// StatusChange describes an applied status update
type StatusChange struct {
	EdgeID    string            `json:"edge_id"`
	Name      string            `json:"name"`
	OldStatus domain.EdgeStatus `json:"old_status"`
	Status    domain.EdgeStatus `json:"status"`
}

// ImportResult summarizes a seed import
type ImportResult struct {
	Nodes     int  `json:"nodes"`
	Edges     int  `json:"edges"`
	Incidents int  `json:"incidents"`
	Replaced  bool `json:"replaced"`
}

// NetworkService provides operator actions on the topology store
type NetworkService struct {
	store     repository.Store
	publisher Publisher
	logger    *slog.Logger
}

// NewNetworkService creates a service over store. publisher may be nil when
// the store notifies subscribers itself.
func NewNetworkService(store repository.Store, publisher Publisher, logger *slog.Logger) *NetworkService {
	return &NetworkService{
		store:     store,
		publisher: publisher,
		logger:    logging.OrNop(logger).With("component", "network-service"),
	}
}

// Topology returns the current snapshot straight from the store
func (s *NetworkService) Topology(ctx context.Context) (*domain.Snapshot, error) {
	return s.store.FetchTopology(ctx)
}

// UpdateEdgeStatus sets an edge's status and publishes the change
func (s *NetworkService) UpdateEdgeStatus(ctx context.Context, edgeID string, req StatusUpdate) (*StatusChange, error) {
	if edgeID == "" {
		return nil, fmt.Errorf("%w: edge id required", ErrInvalid)
	}
	if err := changes.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	edge, err := s.store.GetEdge(ctx, edgeID)
	if err != nil {
		return nil, err
	}

	status := domain.EdgeStatus(req.Status)
	old, err := s.store.UpdateEdgeStatus(ctx, edgeID, status)
	if err != nil {
		return nil, err
	}

	change := &StatusChange{
		EdgeID:    edgeID,
		Name:      edge.Name,
		OldStatus: old,
		Status:    status,
	}
	s.logger.Info("edge status updated", "edge_id", edgeID, "old", old, "new", status)

	if s.publisher != nil {
		s.publisher.Publish(changes.UpdatePayload(edgeID, edge.Name, old, status))
	}
	return change, nil
}

// ImportSeed reads a network in the given format and loads it into the store
func (s *NetworkService) ImportSeed(ctx context.Context, r io.Reader, format string, replace bool) (*ImportResult, error) {
	importer, ok := s.store.(repository.Importer)
	if !ok {
		return nil, ErrImportUnsupported
	}

	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	network, err := c.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := importer.ImportNetwork(ctx, network, replace); err != nil {
		return nil, err
	}

	result := &ImportResult{
		Nodes:     len(network.Nodes),
		Edges:     len(network.Edges),
		Incidents: len(network.Incidents),
		Replaced:  replace,
	}
	s.logger.Info("network imported",
		"nodes", result.Nodes, "edges", result.Edges, "incidents", result.Incidents, "replace", replace)
	return result, nil
}

// ImportFile imports a seed file, picking the format from its extension
func (s *NetworkService) ImportFile(ctx context.Context, path string, replace bool) (*ImportResult, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	return s.ImportSeed(ctx, f, c.Format(), replace)
}

// Export writes the stored nodes and edges in the given format. Incident
// annotations are derived data and are not exported.
func (s *NetworkService) Export(ctx context.Context, w io.Writer, format string) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	snap, err := s.store.FetchTopology(ctx)
	if err != nil {
		return err
	}

	network := &repository.Network{
		Nodes: snap.Nodes,
		Edges: make([]domain.Edge, len(snap.Edges)),
	}
	for i, e := range snap.Edges {
		e.Severity = ""
		e.HasAcknowledgedIncidents = false
		network.Edges[i] = e
	}
	return c.Export(network, w)
}
