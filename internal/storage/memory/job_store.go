package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/iconshelf/internal/exportjob"
)

// JobStore keeps export jobs in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]exportjob.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore. A nil now uses the wall clock.
func NewJobStore(now func() time.Time) *JobStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &JobStore{
		jobs: make(map[uuid.UUID]exportjob.Job),
		now:  now,
	}
}

// CreateJob stores a new job in queued status.
func (s *JobStore) CreateJob(_ context.Context, job exportjob.Job) error {
	if job.ID == uuid.Nil {
		return errors.New("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.Status == "" {
		job.Status = exportjob.StatusQueued
	}
	if job.Created.IsZero() {
		job.Created = s.now()
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status, message and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	id uuid.UUID,
	status exportjob.Status,
	message string,
	counters exportjob.Counters,
) error {
	return s.mutate(id, func(job *exportjob.Job) {
		s.transition(job, status)
		job.Message = message
		job.Counters = counters
	})
}

// SetArtifact records where the finished library was stored.
func (s *JobStore) SetArtifact(_ context.Context, id uuid.UUID, path, uri, fileName string) error {
	return s.mutate(id, func(job *exportjob.Job) {
		job.ArtifactPath = path
		job.ArtifactURI = uri
		job.FileName = fileName
	})
}

// FailJob moves a job to failed.
func (s *JobStore) FailJob(_ context.Context, id uuid.UUID, message, errText string) error {
	return s.mutate(id, func(job *exportjob.Job) {
		s.transition(job, exportjob.StatusFailed)
		job.Message = message
		job.ErrorText = errText
	})
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, id uuid.UUID) (exportjob.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return exportjob.Job{}, fmt.Errorf("job %s: %w", id, exportjob.ErrJobNotFound)
	}
	return job, nil
}

func (s *JobStore) mutate(id uuid.UUID, fn func(*exportjob.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, exportjob.ErrJobNotFound)
	}
	fn(&job)
	s.jobs[id] = job
	return nil
}

func (s *JobStore) transition(job *exportjob.Job, status exportjob.Status) {
	job.Status = status
	now := s.now()
	if status == exportjob.StatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() && job.Finished == nil {
		job.Finished = pointerTime(now)
	}
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}

var _ exportjob.Store = (*JobStore)(nil)
