package domain

import "time"

// EdgeChange is a normalized record of one pushed edge mutation
type EdgeChange struct {
	EdgeID     string     `json:"edge_id" validate:"required"`
	Name       string     `json:"name"`
	Status     EdgeStatus `json:"status" validate:"required,oneof=open closed isolated"`
	OldStatus  EdgeStatus `json:"old_status,omitempty" validate:"omitempty,oneof=open closed isolated"`
	ReceivedAt time.Time  `json:"received_at"`
}

// IsIsolation reports whether the change moves the edge into isolation
func (c EdgeChange) IsIsolation() bool {
	return c.Status == EdgeStatusIsolated
}
