package dashboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"hydrotwin/internal/domain"
)

// NoticeLevel is the severity of a user-visible notice
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a toast shown to every attached operator
type Notice struct {
	ID          string      `json:"id"`
	Level       NoticeLevel `json:"level"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	EdgeID      string      `json:"edge_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsolationNotice is raised when a pushed change isolates a pipe
func IsolationNotice(edgeID, edgeName string, at time.Time) Notice {
	name := edgeName
	if name == "" {
		name = edgeID
	}
	return Notice{
		ID:          uuid.NewString(),
		Level:       NoticeWarning,
		Title:       fmt.Sprintf("Pipe %s has been isolated", name),
		Description: "Autonomous isolation action triggered by AI agent",
		EdgeID:      edgeID,
		CreatedAt:   at,
	}
}

// Observer is told about notices and about every graph that gets drawn
type Observer interface {
	Notify(n Notice)
	GraphChanged(g *domain.Graph)
}

type nopObserver struct{}

func (nopObserver) Notify(Notice)               {}
func (nopObserver) GraphChanged(*domain.Graph) {}
