// Package service implements operator actions on the topology store.
//
// NetworkService sits between the HTTP handlers and a repository.Store. It
// validates requests, applies them to the store and publishes the resulting
// edge change so that mounted dashboards see it on their change channel.
//
// # Operations
//
// UpdateEdgeStatus changes the authoritative status of one pipe. The change
// is published after the store commits it.
//
// ImportSeed and Export move a whole network in and out of the store using
// the codec package.
//
// # Design Principles
//
// - Services own validation; stores own persistence
// - Publishing is optional; stores that notify on their own need no publisher
// - Context-aware for cancellation and timeouts
package service
