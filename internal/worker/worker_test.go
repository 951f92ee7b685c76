package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/export"
	"github.com/JakeFAU/iconshelf/internal/exportjob"
	"github.com/JakeFAU/iconshelf/internal/icon"
	mempub "github.com/JakeFAU/iconshelf/internal/publisher/memory"
	memqueue "github.com/JakeFAU/iconshelf/internal/queue/memory"
	"github.com/JakeFAU/iconshelf/internal/storage/memory"
)

type staticFetcher struct {
	fail map[string]bool
}

func (f staticFetcher) FetchAsset(_ context.Context, rec icon.Record) ([]byte, error) {
	if f.fail[rec.FileName] {
		return nil, &icon.FetchError{Path: rec.RelativePath, StatusCode: 500}
	}
	return []byte(`<svg width="10" height="20"/>`), nil
}

type failingExporter struct{ err error }

func (f failingExporter) Export(
	_ context.Context,
	_ uuid.UUID,
	_ []icon.Record,
	_ export.Downloader,
	_ export.ProgressFunc,
) (export.Result, error) {
	return export.Result{}, f.err
}

func (failingExporter) FileName() string { return export.DefaultLibraryName }

type fixture struct {
	queue *memqueue.Queue
	jobs  *memory.JobStore
	blobs *memory.BlobStore
}

func startWorker(t *testing.T, exporter exportjob.Exporter, pub ...exportjob.Publisher) fixture {
	t.Helper()
	fx := fixture{
		queue: memqueue.NewQueue(4),
		jobs:  memory.NewJobStore(nil),
		blobs: memory.NewBlobStore(),
	}
	w := New(fx.queue, fx.jobs, fx.blobs, exporter, zap.NewNop())
	if len(pub) > 0 {
		w.WithPublisher(pub[0], "export-events")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return fx
}

func submit(t *testing.T, fx fixture, icons []icon.Record) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, fx.jobs.CreateJob(context.Background(), exportjob.Job{ID: id}))
	require.NoError(t, fx.queue.Enqueue(context.Background(), exportjob.QueueItem{JobID: id, Icons: icons}))
	return id
}

func waitTerminal(t *testing.T, jobs *memory.JobStore, id uuid.UUID) exportjob.Job {
	t.Helper()
	var job exportjob.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.GetJob(context.Background(), id)
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestWorkerProcessJobSuccess(t *testing.T) {
	t.Parallel()

	icons := []icon.Record{
		icon.NewRecord("compute", "1-icon-service-Disk.svg"),
		icon.NewRecord("compute", "2-icon-service-Broken.svg"),
		icon.NewRecord("storage", "3-icon-service-Blob.svg"),
	}
	exporter := export.NewDrawIO(
		staticFetcher{fail: map[string]bool{"2-icon-service-Broken.svg": true}},
		nil, nil, export.DrawIOConfig{}, nil,
	)
	fx := startWorker(t, exporter)
	id := submit(t, fx, icons)

	job := waitTerminal(t, fx.jobs, id)
	require.Equal(t, exportjob.StatusSucceeded, job.Status)
	require.Equal(t, exportjob.Counters{Total: 3, Processed: 3, IconCount: 2, Failed: 1}, job.Counters)
	require.Equal(t, "Draw.io library exported! (2 icons)", job.Message)
	require.Equal(t, "exports/"+id.String()+"/azure-icons-drawio.xml", job.ArtifactPath)
	require.Equal(t, "memory://"+job.ArtifactPath, job.ArtifactURI)
	require.NotNil(t, job.Started)

	rc, err := fx.blobs.GetObject(context.Background(), job.ArtifactPath)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Contains(t, string(data), `"title": "Disk"`)
	require.Equal(t, export.MIMEXML, fx.blobs.ContentType(job.ArtifactPath))
}

func TestWorkerProcessJobFailure(t *testing.T) {
	t.Parallel()

	fx := startWorker(t, failingExporter{err: &icon.ExportError{Op: "download", Err: errors.New("disk full")}})
	id := submit(t, fx, []icon.Record{icon.NewRecord("compute", "1-icon-service-Disk.svg")})

	job := waitTerminal(t, fx.jobs, id)
	require.Equal(t, exportjob.StatusFailed, job.Status)
	require.Equal(t, "Export failed - please try again", job.Message)
	require.Contains(t, job.ErrorText, "disk full")
	require.Empty(t, job.ArtifactPath)
}

func TestWorkerSkipsUnknownJob(t *testing.T) {
	t.Parallel()

	fx := startWorker(t, failingExporter{})
	require.NoError(t, fx.queue.Enqueue(context.Background(), exportjob.QueueItem{JobID: uuid.New()}))

	id := submit(t, fx, nil)
	job := waitTerminal(t, fx.jobs, id)
	require.Equal(t, exportjob.StatusSucceeded, job.Status)
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := memqueue.NewQueue(1)
	w := New(q, memory.NewJobStore(nil), memory.NewBlobStore(), failingExporter{}, nil)
	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()
	q.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}


func TestWorkerPublishesFinishedEvents(t *testing.T) {
	t.Parallel()

	pub := mempub.New()
	exporter := export.NewDrawIO(staticFetcher{}, nil, nil, export.DrawIOConfig{}, nil)
	fx := startWorker(t, exporter, pub)
	id := submit(t, fx, []icon.Record{icon.NewRecord("compute", "1-icon-service-Disk.svg")})
	job := waitTerminal(t, fx.jobs, id)

	require.Eventually(t, func() bool { return len(pub.Events("export-events")) == 1 }, time.Second, 5*time.Millisecond)
	event := pub.Events("export-events")[0]
	require.Equal(t, id, event.ExportID)
	require.Equal(t, exportjob.StatusSucceeded, event.Status)
	require.Equal(t, 1, event.IconCount)
	require.Equal(t, job.ArtifactURI, event.ArtifactURI)
	require.Equal(t, "export.succeeded", event.EventName())
	require.False(t, event.FinishedAt.IsZero())
}

func TestWorkerPublishesFailures(t *testing.T) {
	t.Parallel()

	pub := mempub.New()
	fx := startWorker(t, failingExporter{err: errors.New("boom")}, pub)
	id := submit(t, fx, []icon.Record{icon.NewRecord("compute", "1-icon-service-Disk.svg")})
	waitTerminal(t, fx.jobs, id)

	require.Eventually(t, func() bool { return len(pub.Events("export-events")) == 1 }, time.Second, 5*time.Millisecond)
	event := pub.Events("export-events")[0]
	require.Equal(t, exportjob.StatusFailed, event.Status)
	require.Equal(t, "boom", event.Error)
	require.Empty(t, event.ArtifactURI)
}
