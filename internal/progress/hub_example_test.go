package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleCountingSink struct {
	processed int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		if evt.Stage == StageBatchDone {
			s.processed = evt.Processed
		}
	}
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit reports the cumulative processed count of an export.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{MaxBatchEvents: 1, MaxBatchWait: time.Second}, sink)

	id := UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	for _, processed := range []int{50, 100, 120} {
		hub.Emit(Event{ExportID: id, TS: time.Unix(0, 0), Stage: StageBatchDone, Processed: processed, Total: 120})
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("processed: %d\n", sink.processed)
	// Output:
	// processed: 120
}
