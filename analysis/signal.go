package analysis

import (
	"github.com/RyanBlaney/sonido-analyze/transcode"
)

// Signal is a mono sample buffer with its sample rate
type Signal struct {
	Samples    []float64
	SampleRate int
}

// SignalFromAudio wraps decoded audio. The decoder already downmixes to mono.
func SignalFromAudio(audio *transcode.AudioData) Signal {
	if audio == nil {
		return Signal{}
	}
	return Signal{Samples: audio.PCM, SampleRate: audio.SampleRate}
}

// Duration returns the signal length in seconds
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// State is a pipeline lifecycle state
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateExtracting
	StateAssembled
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateExtracting:
		return "extracting"
	case StateAssembled:
		return "assembled"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
