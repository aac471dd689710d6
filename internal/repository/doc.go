// Package repository defines the data access interfaces for hydrotwin.
//
// The authoritative network state (nodes, pipes and incident records) lives
// in a store that the dashboard reads in full on every poll. Two
// implementations exist:
//
//   - sqlite: a local store using modernc.org/sqlite with WAL mode. It is the
//     default and supports bulk import of a YAML network seed.
//   - postgres: a pgx pool against a managed Postgres backend. It also
//     provides a LISTEN/NOTIFY change channel.
//
// Incident severity is not stored on edges. Each read derives it from the
// active incidents referencing the edge, the same way for both stores.
package repository
