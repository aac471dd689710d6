// Package handler implements the HTTP API of the hydrotwin server.
//
// # Handlers
//
// Handler serves the dashboard session (topology, rendered graph, status,
// overrides, refresh) and the operator actions of the network service (edge
// status updates, seed import and export). FeedHandler streams edge changes
// to websocket clients.
//
// Middleware provides panic recovery, CORS support and request logging with
// Prometheus metrics.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 202).
// Error responses return JSON with {error, details} structure.
//
// # Streams
//
// /events carries the map draw stream (Server-Sent Events, served by the hub
// package). /ws/edges carries raw edge changes for other hydrotwin instances
// configured with a websocket change channel.
package handler
