package pipeline

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned by RunBatch while another run is active.
var ErrAlreadyRunning = errors.New("batch run already in progress")

// OrchestrationError is a run-level failure: the photo source or the
// dedup lookup could not be queried.
type OrchestrationError struct {
	State State
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("batch run failed while %s: %v", e.State, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// PersistenceError is a failed write of a page's media records. It aborts
// the run; the page stays unprocessed and is retried on the next run.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
