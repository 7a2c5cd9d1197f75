package pipeline

import (
	"errors"
	"fmt"
)

// ErrStageTimeout indicates a stage ran past its configured timeout.
var ErrStageTimeout = errors.New("stage timed out")

// StageError reports which stage of a run failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
