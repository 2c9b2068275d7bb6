package temporal

import (
	"github.com/RyanBlaney/sonido-analyze/algorithms/common"
	"github.com/RyanBlaney/sonido-analyze/algorithms/framing"
)

// Energy computes frame-level energy features
type Energy struct {
	framer *framing.Framer
}

// NewEnergy creates an energy calculator over the framer's window and hop
func NewEnergy(framer *framing.Framer) *Energy {
	return &Energy{framer: framer}
}

// ComputeShortTimeEnergy returns the RMS of the raw (unwindowed) samples of
// every frame: sqrt(mean(x^2)). Zero padding of a short final frame counts
// towards the mean.
func (e *Energy) ComputeShortTimeEnergy(signal []float64) []float64 {
	energies := make([]float64, e.framer.Count(len(signal)))

	for i, frame := range e.framer.RawFrames(signal) {
		energies[i] = common.RMS(frame)
	}

	return energies
}
