package exportjob

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher announces finished jobs to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// FinishedEvent is published once per job after it reaches a terminal state.
type FinishedEvent struct {
	ExportID    uuid.UUID `json:"export_id"`
	Status      Status    `json:"status"`
	IconCount   int       `json:"icon_count"`
	Failed      int       `json:"failed"`
	ArtifactURI string    `json:"artifact_uri,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// EventName labels the event for message attributes, e.g. "export.succeeded".
func (e FinishedEvent) EventName() string {
	return "export." + string(e.Status)
}
