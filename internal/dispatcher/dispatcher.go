// Package dispatcher accepts export jobs and fans queue work out to workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/iconshelf/internal/exportjob"
	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue    exportjob.Queue
	jobStore exportjob.Store
	ids      icon.IDGenerator
	workers  []*worker.Worker
}

// New creates a Dispatcher.
func New(queue exportjob.Queue, jobStore exportjob.Store, ids icon.IDGenerator, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:    queue,
		jobStore: jobStore,
		ids:      ids,
		workers:  workers,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit records a queued job for the filtered icons and hands it to the pool.
func (d *Dispatcher) Submit(ctx context.Context, query, category string, icons []icon.Record) (exportjob.Job, error) {
	id, err := d.ids.NewID()
	if err != nil {
		return exportjob.Job{}, fmt.Errorf("job id: %w", err)
	}
	job := exportjob.Job{
		ID:       id,
		Status:   exportjob.StatusQueued,
		Query:    query,
		Category: category,
		Counters: exportjob.Counters{Total: len(icons)},
	}
	if err := d.jobStore.CreateJob(ctx, job); err != nil {
		return exportjob.Job{}, fmt.Errorf("create job: %w", err)
	}
	if err := d.Enqueue(ctx, exportjob.QueueItem{JobID: id, Icons: icons}); err != nil {
		if failErr := d.jobStore.FailJob(ctx, id, "", err.Error()); failErr != nil {
			return exportjob.Job{}, fmt.Errorf("%w (mark failed: %v)", err, failErr)
		}
		return exportjob.Job{}, err
	}
	stored, err := d.jobStore.GetJob(ctx, id)
	if err != nil {
		return exportjob.Job{}, fmt.Errorf("load job: %w", err)
	}
	return stored, nil
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item exportjob.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
