// Package domain defines the core types for the hydrotwin water-network dashboard.
//
// This package contains the entities that describe a distribution network as the
// topology service reports it, and the derived view the dashboard draws.
//
// # Core Types
//
// Node represents a junction, tank or reservoir with a map position and an
// optional pressure reading.
//
// Edge represents a pipe between two nodes. Its status (open, closed, isolated)
// is authoritative; the incident severity and acknowledged-incident flag are
// annotations derived by the incident service.
//
// Snapshot is one full read of the topology: every node, every edge and the
// incident summary at the time of the read.
//
// EdgeChange is a normalized record of a single pushed edge mutation.
//
// # Derived View
//
// Graph is what the dashboard draws: one NodeStyle per node and one EdgeView
// (renderable edge state) per edge whose endpoints resolve. It is recomputed
// on every reconciliation pass and never persisted.
//
// # Design Principles
//
// - Node and edge identity is stable; attributes are replaced wholesale per snapshot
// - No database or transport dependencies
// - Enumerations are typed strings matching the backend's enum values
package domain
