package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySignal is returned for a signal with zero samples
	ErrEmptySignal = errors.New("empty signal")
	// ErrSignalTooShort is returned when the signal cannot fill one analysis window
	ErrSignalTooShort = errors.New("signal shorter than one analysis window")
	// ErrInvalidConfiguration covers non-positive sizes, unknown names and a
	// segment count the signal cannot support
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrInvalidState is returned when a pipeline step is called out of order
	ErrInvalidState = errors.New("invalid pipeline state")
)

// Stage names a step of the pipeline
type Stage string

const (
	StageLoad         Stage = "load"
	StageSpectral     Stage = "spectral"
	StageCepstral     Stage = "mfcc"
	StageChroma       Stage = "chroma"
	StageRhythm       Stage = "rhythm"
	StageSegmentation Stage = "segmentation"
	StageWaveform     Stage = "waveform"
)

// PipelineError reports the stage at which an analysis failed
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Stage: stage, Err: err}
}
