package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptions is returned when compositor options are out of range.
	ErrInvalidOptions = errors.New("invalid compositor options")
	// ErrInvalidSource is returned for empty or oversized source images.
	ErrInvalidSource = errors.New("invalid source image")
)

// Stages of a single nesting iteration, reported in StepError.
const (
	StageResample = "resample"
	StageRotate   = "rotate"
	StagePaste    = "paste"
	StageSnapshot = "snapshot"
)

// StepError reports a failure inside one iteration. Frames recorded before
// the failing iteration are discarded by the compositor.
type StepError struct {
	Iteration int
	Stage     string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("iteration %d: %s failed: %v", e.Iteration, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Termination tells why a composite run stopped.
type Termination int

const (
	// TerminationMaxIterations means every requested iteration was produced.
	TerminationMaxIterations Termination = iota
	// TerminationGeometry means the next scaled copy would have been too small.
	TerminationGeometry
)

func (t Termination) String() string {
	switch t {
	case TerminationMaxIterations:
		return "max_iterations"
	case TerminationGeometry:
		return "geometry"
	default:
		return fmt.Sprintf("termination(%d)", int(t))
	}
}
