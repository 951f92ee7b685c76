package icon

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an icon id is not part of the library.
var ErrNotFound = errors.New("icon not found")

// ScanError reports that the index builder could not read the source tree.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// FetchError reports that a single icon's bytes could not be retrieved.
type FetchError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d: %v", e.Path, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("fetch %s: status %d", e.Path, e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExportError is a pipeline-level export failure. It surfaces to the user as a
// single message and is never retried.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
