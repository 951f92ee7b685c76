// Package exportjob defines the asynchronous bulk export jobs behind the HTTP
// surface and the contracts between the API, the queue and the workers.
package exportjob

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/icon"
)

// Status is the lifecycle state of a job.
type Status string

// Job states.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("export job not found")
	// ErrQueueClosed is returned by queues after shutdown.
	ErrQueueClosed = errors.New("queue closed")
)

// Counters track pipeline progress for a job.
type Counters struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	IconCount int `json:"icon_count"`
	Failed    int `json:"failed"`
}

// Job is one requested draw.io export.
type Job struct {
	ID       uuid.UUID `json:"id"`
	Status   Status    `json:"status"`
	Query    string    `json:"query"`
	Category string    `json:"category"`
	Counters Counters  `json:"counters"`
	// Message is the latest user-facing progress line.
	Message      string     `json:"message,omitempty"`
	ErrorText    string     `json:"error,omitempty"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	ArtifactURI  string     `json:"artifact_uri,omitempty"`
	FileName     string     `json:"file_name,omitempty"`
	Created      time.Time  `json:"created"`
	Started      *time.Time `json:"started,omitempty"`
	Finished     *time.Time `json:"finished,omitempty"`
}

// QueueItem carries the already-filtered icon list to a worker.
type QueueItem struct {
	JobID uuid.UUID
	Icons []icon.Record
}

// Store persists job state.
type Store interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status Status, message string, counters Counters) error
	SetArtifact(ctx context.Context, id uuid.UUID, path, uri, fileName string) error
	FailJob(ctx context.Context, id uuid.UUID, message, errText string) error
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
}

// Queue hands work to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Exporter runs the draw.io pipeline; *export.DrawIO satisfies it.
type Exporter interface {
	Export(
		ctx context.Context,
		exportID uuid.UUID,
		records []icon.Record,
		dl export.Downloader,
		onProgress export.ProgressFunc,
	) (export.Result, error)
	FileName() string
}

// ArtifactPrefix is the blob prefix of a job's library file.
func ArtifactPrefix(id uuid.UUID) string {
	return "exports/" + id.String()
}
