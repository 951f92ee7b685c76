package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported export stages.
const (
	StageExportStart Stage = "EXPORT_START"
	StageBatchDone   Stage = "BATCH_DONE"
	StageItemFailed  Stage = "ITEM_FAILED"
	StageExportDone  Stage = "EXPORT_DONE"
	StageExportError Stage = "EXPORT_ERROR"
)

// Event captures one step of a bulk export.
type Event struct {
	// ExportID identifies the export run in 16-byte UUID form.
	ExportID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Processed is the cumulative number of icons handled, successful or not.
	Processed int
	Total     int
	// Succeeded counts icons embedded in the library so far.
	Succeeded int
	// Failed counts icons dropped so far.
	Failed int
	Dur    time.Duration
	// Note carries the user-facing message or the error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ExportID == [16]byte{} {
		return errors.New("export id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageExportStart, StageBatchDone, StageExportDone, StageExportError:
	case StageItemFailed:
		if e.Note == "" {
			return errors.New("item failure requires note")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Processed < 0 || e.Total < 0 || e.Processed > e.Total {
		return fmt.Errorf("processed %d out of range for total %d", e.Processed, e.Total)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ExportUUID converts the binary export ID to uuid.UUID.
func (e Event) ExportUUID() uuid.UUID {
	return uuid.UUID(e.ExportID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
