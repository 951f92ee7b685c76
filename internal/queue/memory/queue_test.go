package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/iconshelf/internal/exportjob"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan exportjob.QueueItem, 1)
	errCh := make(chan error, 1)
	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	id := uuid.New()
	require.NoError(t, q.Enqueue(context.Background(), exportjob.QueueItem{JobID: id}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, id, got.JobID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue(1)
	require.NoError(t, full.Enqueue(context.Background(), exportjob.QueueItem{}))
	require.EqualError(t, full.Enqueue(ctx, exportjob.QueueItem{}), "enqueue canceled: context canceled")
}

func TestQueueTryEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.TryEnqueue(exportjob.QueueItem{}))
	require.ErrorIs(t, q.TryEnqueue(exportjob.QueueItem{}), ErrQueueFull)
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), exportjob.QueueItem{}), ErrQueueClosed)
	require.ErrorIs(t, q.TryEnqueue(exportjob.QueueItem{}), ErrQueueClosed)
	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
}
