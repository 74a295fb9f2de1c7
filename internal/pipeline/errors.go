package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stage names a pipeline stage for error reporting.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageEnrich    Stage = "enrich"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
	StageArchive   Stage = "archive"
	StageNotify    Stage = "notify"
	StageExport    Stage = "export"
)

// StageError is returned by Pipeline.Execute when a step fails. Err carries
// the stack captured where the failure was first wrapped: inside the driver
// for source, warehouse, mail and archive errors, or at the stage boundary
// for errors raised by the pipeline itself.
type StageError struct {
	Stage Stage
	Step  int // 1-based position in the pipeline
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage (step %d) failed: %v", e.Stage, e.Step, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage err failed in, or "" if err is not a *StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func newStageError(stage Stage, step int, err error) *StageError {
	var st stackTracer
	if !errors.As(err, &st) {
		err = errors.WithStack(err)
	}
	return &StageError{Stage: stage, Step: step, Err: err}
}
