package temporal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultStartBPM centres the tempo prior
	DefaultStartBPM = 120.0
	// DefaultMinOnsetDB is the mean per-bin dB rise a frame must reach to
	// count as an onset
	DefaultMinOnsetDB = 0.5

	priorOctaves = 1.0
)

// TempoEstimate is the outcome of global tempo estimation. A zero BPM marks a
// degenerate envelope (silence, a steady tone, or a clip too short to hold
// one period of the slowest allowed tempo).
type TempoEstimate struct {
	BPM        float64 `json:"bpm"`
	LagFrames  int     `json:"lag_frames"`
	Confidence float64 `json:"confidence"` // normalized autocorrelation at the chosen lag
}

// TempoEstimation finds the dominant periodicity of an onset envelope.
// Lags are weighted by a log-normal prior around startBPM, one octave wide,
// so a period and its multiples do not compete on equal terms.
type TempoEstimation struct {
	minBPM     float64
	maxBPM     float64
	startBPM   float64
	minOnsetDB float64
}

// NewTempoEstimation creates a tempo estimator searching [minBPM, maxBPM]
func NewTempoEstimation(minBPM, maxBPM float64) *TempoEstimation {
	return &TempoEstimation{
		minBPM:     minBPM,
		maxBPM:     maxBPM,
		startBPM:   DefaultStartBPM,
		minOnsetDB: DefaultMinOnsetDB,
	}
}

// WithStartBPM moves the centre of the tempo prior. Non-positive values keep
// the current centre.
func (te *TempoEstimation) WithStartBPM(bpm float64) *TempoEstimation {
	if bpm > 0 {
		te.startBPM = bpm
	}
	return te
}

// LagRange returns the inclusive lag range in frames covering the BPM range
func (te *TempoEstimation) LagRange(hopSize, sampleRate int) (int, int) {
	framesPerMinute := 60.0 * float64(sampleRate) / float64(hopSize)
	minLag := int(math.Ceil(framesPerMinute / te.maxBPM))
	maxLag := int(math.Floor(framesPerMinute / te.minBPM))
	return max(minLag, 1), maxLag
}

// IsFlat reports whether a dB-flux onset envelope taken over numBins
// frequency bins carries no usable onsets. The strongest frame must rise by
// at least minOnsetDB per bin on average. Steady tones of any pitch or level
// stay far below that; silence has no flux at all.
func (te *TempoEstimation) IsFlat(envelope []float64, numBins int) bool {
	if len(envelope) == 0 || numBins <= 0 {
		return true
	}
	peak := floats.Max(envelope)
	if peak <= 0 {
		return true
	}
	return peak/float64(numBins) <= te.minOnsetDB
}

// Estimate picks the lag with the strongest prior-weighted autocorrelation
// inside the tempo range and converts it to BPM via
// 60*sampleRate/(hopSize*lag). Equal scores keep the shorter lag.
//
// The autocorrelation is smoothed with a [1 2 1]/4 kernel first: a period
// that is not a whole number of frames splits its energy across two lags,
// and without smoothing its multiple would win. The reported BPM uses the
// parabolic peak of the smoothed curve, so it is not quantized to whole lags.
func (te *TempoEstimation) Estimate(envelope []float64, hopSize, sampleRate int) TempoEstimate {
	if hopSize <= 0 || sampleRate <= 0 {
		return TempoEstimate{}
	}

	minLag, maxLag := te.LagRange(hopSize, sampleRate)
	maxLag = min(maxLag, len(envelope)-1)
	if minLag > maxLag {
		return TempoEstimate{}
	}

	autocorr := Autocorrelation(envelope, maxLag+2)
	if len(autocorr) == 0 || autocorr[0] <= 0 {
		return TempoEstimate{}
	}

	framesPerMinute := 60.0 * float64(sampleRate) / float64(hopSize)

	bestLag := 0
	bestVal := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		score := smoothedAt(autocorr, lag) * te.prior(framesPerMinute/float64(lag))
		if score > bestVal {
			bestVal = score
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return TempoEstimate{}
	}

	lag := float64(bestLag) + parabolicOffset(
		smoothedAt(autocorr, bestLag-1),
		smoothedAt(autocorr, bestLag),
		smoothedAt(autocorr, bestLag+1),
	)

	return TempoEstimate{
		BPM:        framesPerMinute / lag,
		LagFrames:  bestLag,
		Confidence: autocorr[bestLag] / autocorr[0],
	}
}

// prior is the log-normal tempo weight, 1 at startBPM
func (te *TempoEstimation) prior(bpm float64) float64 {
	octaves := (math.Log2(bpm) - math.Log2(te.startBPM)) / priorOctaves
	return math.Exp(-0.5 * octaves * octaves)
}

// smoothedAt applies the [1 2 1]/4 kernel at lag, repeating edge values
func smoothedAt(autocorr []float64, lag int) float64 {
	last := len(autocorr) - 1
	at := func(i int) float64 {
		return autocorr[max(0, min(i, last))]
	}
	return (at(lag-1) + 2*at(lag) + at(lag+1)) / 4
}

// parabolicOffset returns the vertex offset of the parabola through three
// equally spaced points around a local maximum, or 0 when b is not a peak
func parabolicOffset(a, b, c float64) float64 {
	den := a - 2*b + c
	if den >= 0 {
		return 0
	}
	offset := 0.5 * (a - c) / den
	if math.Abs(offset) >= 1 {
		return 0
	}
	return offset
}

// Autocorrelation returns the biased autocorrelation of the mean-removed
// signal for lags 0..maxLag. Every lag is divided by the full length, so
// multiples of a period score below the period itself.
func Autocorrelation(signal []float64, maxLag int) []float64 {
	if len(signal) == 0 || maxLag < 0 {
		return []float64{}
	}
	maxLag = min(maxLag, len(signal)-1)

	mean := stat.Mean(signal, nil)
	centered := make([]float64, len(signal))
	for i, v := range signal {
		centered[i] = v - mean
	}

	autocorr := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		n := len(centered) - lag
		autocorr[lag] = floats.Dot(centered[:n], centered[lag:]) / float64(len(centered))
	}

	return autocorr
}
