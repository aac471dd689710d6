package repository

import (
	"context"
	"errors"

	"hydrotwin/internal/domain"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// TopologyReader reads full snapshots of the network
type TopologyReader interface {
	FetchTopology(ctx context.Context) (*domain.Snapshot, error)
}

// EdgeWriter changes the authoritative state of pipes
type EdgeWriter interface {
	GetEdge(ctx context.Context, id string) (*domain.Edge, error)
	// UpdateEdgeStatus sets the status of an edge and returns its previous status
	UpdateEdgeStatus(ctx context.Context, id string, status domain.EdgeStatus) (old domain.EdgeStatus, err error)
}

// Store is a read-write topology store
type Store interface {
	TopologyReader
	EdgeWriter
	Close() error
}

// Network is a bulk import unit: the topology plus its incident records
type Network struct {
	Nodes     []domain.Node     `json:"nodes" yaml:"nodes"`
	Edges     []domain.Edge     `json:"edges" yaml:"edges"`
	Incidents []domain.Incident `json:"incidents,omitempty" yaml:"incidents,omitempty"`
}

// Importer loads a network in bulk
type Importer interface {
	ImportNetwork(ctx context.Context, network *Network, replace bool) error
}
