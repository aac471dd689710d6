// Package changes listens for pushed edge mutations and turns isolation
// events into override requests.
//
// A Channel delivers raw edge row changes. The Listener subscribes to one
// channel while the dashboard is mounted, normalizes and validates each
// change, and forwards the ones that move an edge to isolated. Every other
// status is left for the next snapshot to report.
package changes

import (
	"context"
	"time"

	"hydrotwin/internal/domain"
)

// EdgeRow is the subset of an edge row carried by a change
type EdgeRow struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Status string `json:"status"`
}

// Payload is one edge row mutation as a channel delivers it
type Payload struct {
	Table string   `json:"table,omitempty"`
	Type  string   `json:"type,omitempty"` // UPDATE, INSERT
	New   EdgeRow  `json:"new"`
	Old   *EdgeRow `json:"old,omitempty"`
}

// UpdatePayload builds the payload for a status update on one edge
func UpdatePayload(edgeID, name string, oldStatus, newStatus domain.EdgeStatus) Payload {
	p := Payload{
		Table: "edges",
		Type:  "UPDATE",
		New:   EdgeRow{ID: edgeID, Name: name, Status: string(newStatus)},
	}
	if oldStatus != "" {
		p.Old = &EdgeRow{ID: edgeID, Name: name, Status: string(oldStatus)}
	}
	return p
}

// Normalize converts a payload to an EdgeChange received at the given time
func (p Payload) Normalize(at time.Time) domain.EdgeChange {
	c := domain.EdgeChange{
		EdgeID:     p.New.ID,
		Name:       p.New.Name,
		Status:     domain.EdgeStatus(p.New.Status),
		ReceivedAt: at,
	}
	if p.Old != nil {
		c.OldStatus = domain.EdgeStatus(p.Old.Status)
	}
	return c
}

// Handler receives payloads from a subscription
type Handler func(p Payload)

// Channel is a source of pushed edge changes
type Channel interface {
	// Subscribe starts delivering payloads to h until the subscription is
	// closed or ctx is cancelled
	Subscribe(ctx context.Context, h Handler) (Subscription, error)
}

// Subscription is an open feed from a Channel
type Subscription interface {
	// Unsubscribe stops delivery. Calling it more than once is harmless.
	Unsubscribe() error
	// Done is closed once delivery has ended, whether by Unsubscribe or
	// because the feed dropped
	Done() <-chan struct{}
}
