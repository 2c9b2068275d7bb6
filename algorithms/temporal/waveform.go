package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-analyze/algorithms/common"
)

// Waveform reduces a signal to a fixed number of non-negative magnitudes for
// display
type Waveform struct {
	targetLength int
	interp       *common.Interpolator
}

// NewWaveform creates a summarizer producing exactly targetLength points
func NewWaveform(targetLength int) *Waveform {
	return &Waveform{
		targetLength: targetLength,
		interp:       common.NewInterpolator(common.Linear),
	}
}

// WithInterpolation selects how short sequences are stretched
func (w *Waveform) WithInterpolation(method common.InterpolationType) *Waveform {
	w.interp = common.NewInterpolator(method)
	return w
}

// TargetLength returns the output length
func (w *Waveform) TargetLength() int {
	return w.targetLength
}

// Summarize decimates |x| by step floor(N/T) when the signal is longer than
// the target, truncating any excess. A shorter decimated (or raw) sequence
// is stretched by interpolation, linear unless configured otherwise. Cubic
// overshoot below zero is clipped.
func (w *Waveform) Summarize(signal []float64) []float64 {
	if w.targetLength <= 0 {
		return []float64{}
	}
	if len(signal) == 0 {
		return make([]float64, w.targetLength)
	}

	n := len(signal)
	var reduced []float64

	if n > w.targetLength {
		step := n / w.targetLength
		reduced = make([]float64, 0, (n+step-1)/step)
		for i := 0; i < n; i += step {
			reduced = append(reduced, math.Abs(signal[i]))
		}
		if len(reduced) >= w.targetLength {
			return reduced[:w.targetLength]
		}
	} else {
		reduced = make([]float64, n)
		for i, x := range signal {
			reduced[i] = math.Abs(x)
		}
	}

	out := w.interp.InterpolateArray(reduced, w.targetLength)
	for i, v := range out {
		out[i] = max(v, 0)
	}
	return out
}
