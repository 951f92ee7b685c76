// Package worker runs queued draw.io export jobs.
package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/exportjob"
	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/metrics"
)

// Worker consumes queue items and executes the export pipeline.
type Worker struct {
	queue     exportjob.Queue
	jobStore  exportjob.Store
	blobStore icon.BlobStore
	exporter  exportjob.Exporter
	logger    *zap.Logger
	publisher exportjob.Publisher
	topic     string
}

// New constructs a Worker.
func New(
	queue exportjob.Queue,
	jobStore exportjob.Store,
	blobStore icon.BlobStore,
	exporter exportjob.Exporter,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		blobStore: blobStore,
		exporter:  exporter,
		logger:    logger,
	}
}

// WithPublisher announces every finished job on topic. A nil publisher
// disables announcements.
func (w *Worker) WithPublisher(p exportjob.Publisher, topic string) *Worker {
	w.publisher = p
	w.topic = topic
	return w
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, exportjob.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.Stringer("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item exportjob.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.Stringer("job_id", item.JobID))
	counters := exportjob.Counters{Total: len(item.Icons)}
	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, exportjob.StatusRunning, "", counters); err != nil {
		logger.Error("update job status failed", zap.Error(err))
		return
	}

	dl := &export.BlobDownloader{
		Store:  w.blobStore,
		Prefix: exportjob.ArtifactPrefix(item.JobID),
		Logger: logger,
	}
	onProgress := func(p export.Progress) {
		if p.IsComplete {
			return
		}
		counters.Processed = p.Processed
		if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, exportjob.StatusRunning, p.Message, counters); err != nil {
			logger.Warn("progress update failed", zap.Error(err))
		}
	}

	res, err := w.exporter.Export(ctx, item.JobID, item.Icons, dl, onProgress)
	if err != nil {
		metrics.ObserveJob(string(exportjob.StatusFailed))
		if failErr := w.jobStore.FailJob(ctx, item.JobID, export.FailureMessage, err.Error()); failErr != nil {
			logger.Error("fail job status update", zap.Error(failErr))
			return
		}
		w.announce(ctx, item.JobID, logger)
		return
	}

	path := export.ObjectPath(dl.Prefix, res.FileName)
	if err := w.jobStore.SetArtifact(ctx, item.JobID, path, dl.URI(), res.FileName); err != nil {
		logger.Error("record artifact failed", zap.Error(err))
		return
	}
	counters = exportjob.Counters{
		Total:     len(item.Icons),
		Processed: res.Processed,
		IconCount: res.IconCount,
		Failed:    res.Failed,
	}
	message := export.CompleteMessage(res.IconCount)
	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, exportjob.StatusSucceeded, message, counters); err != nil {
		logger.Error("final job status update failed", zap.Error(err))
		return
	}
	metrics.ObserveJob(string(exportjob.StatusSucceeded))
	w.announce(ctx, item.JobID, logger)
}

func (w *Worker) announce(ctx context.Context, id uuid.UUID, logger *zap.Logger) {
	if w.publisher == nil {
		return
	}
	job, err := w.jobStore.GetJob(ctx, id)
	if err != nil {
		logger.Warn("load finished job", zap.Error(err))
		return
	}
	event := exportjob.FinishedEvent{
		ExportID:    job.ID,
		Status:      job.Status,
		IconCount:   job.Counters.IconCount,
		Failed:      job.Counters.Failed,
		ArtifactURI: job.ArtifactURI,
		FileName:    job.FileName,
		Error:       job.ErrorText,
	}
	if job.Finished != nil {
		event.FinishedAt = *job.Finished
	}
	msgID, err := w.publisher.Publish(ctx, w.topic, event)
	if err != nil {
		logger.Warn("publish finished event", zap.Error(err))
		return
	}
	logger.Debug("published finished event", zap.String("message_id", msgID))
}
