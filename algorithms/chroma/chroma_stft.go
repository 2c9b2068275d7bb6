package chroma

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-analyze/algorithms/spectral"
)

// NumPitchClasses is the number of chroma bins (C, C#, ..., B)
const NumPitchClasses = 12

// Norm selects how each chroma column is normalized
type Norm string

const (
	NormL1  Norm = "l1"
	NormL2  Norm = "l2"
	NormInf Norm = "inf"
)

// ValidNorm reports whether n names a supported column normalization
func ValidNorm(n Norm) bool {
	return n == NormL1 || n == NormL2 || n == NormInf
}

// ChromaSTFT computes a chromagram from an STFT magnitude spectrogram.
//
// Each bin with positive frequency f is assigned the pitch class
// round(12*log2(f/fRef)) mod 12, where fRef is the C below the tuning A
// (A4=440Hz puts C4 at ~261.63Hz), so class 0 is C. The DC bin has no pitch
// and is skipped.
type ChromaSTFT struct {
	tuningFreq float64
	norm       Norm
}

// NewChromaSTFT creates a chroma extractor for the given A4 tuning and column norm
func NewChromaSTFT(tuningFreq float64, norm Norm) (*ChromaSTFT, error) {
	if tuningFreq <= 0 {
		return nil, fmt.Errorf("tuning frequency must be positive, got %g", tuningFreq)
	}
	if norm == "" {
		norm = NormL2
	}
	if !ValidNorm(norm) {
		return nil, fmt.Errorf("unknown chroma norm %q", norm)
	}
	return &ChromaSTFT{tuningFreq: tuningFreq, norm: norm}, nil
}

// NewChromaSTFTDefault creates a chroma extractor with A4=440Hz and L2 columns
func NewChromaSTFTDefault() *ChromaSTFT {
	return &ChromaSTFT{tuningFreq: 440.0, norm: NormL2}
}

// Compute returns the chromagram as frames x 12. Magnitudes are accumulated
// into their pitch class and each frame is normalized; silent frames stay zero.
func (cs *ChromaSTFT) Compute(stft *spectral.STFTResult) [][]float64 {
	mapping := cs.PitchClassMapping(stft.FreqBins, stft.FreqResolution)
	chromagram := make([][]float64, stft.TimeFrames)

	for t := range stft.TimeFrames {
		column := make([]float64, NumPitchClasses)
		for f, pc := range mapping {
			if pc >= 0 && f < len(stft.Magnitude[t]) {
				column[pc] += stft.Magnitude[t][f]
			}
		}
		cs.normalize(column)
		chromagram[t] = column
	}

	return chromagram
}

// PitchClassMapping maps each FFT bin to a pitch class, or -1 for bins
// without a defined pitch
func (cs *ChromaSTFT) PitchClassMapping(freqBins int, freqResolution float64) []int {
	fRef := cs.tuningFreq * math.Pow(2, -9.0/12.0)
	mapping := make([]int, freqBins)

	for f := range freqBins {
		frequency := float64(f) * freqResolution
		if frequency <= 0 {
			mapping[f] = -1
			continue
		}

		semitones := int(math.Round(12.0 * math.Log2(frequency/fRef)))
		mapping[f] = ((semitones % NumPitchClasses) + NumPitchClasses) % NumPitchClasses
	}

	return mapping
}

func (cs *ChromaSTFT) normalize(column []float64) {
	var p float64
	switch cs.norm {
	case NormL1:
		p = 1
	case NormInf:
		p = math.Inf(1)
	default:
		p = 2
	}

	norm := floats.Norm(column, p)
	if norm > 1e-10 {
		floats.Scale(1/norm, column)
	}
}

// Labels returns the chroma bin labels
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}

// DominantPitchClass finds the strongest pitch class of each frame
func DominantPitchClass(chromagram [][]float64) []int {
	dominant := make([]int, len(chromagram))
	for t, column := range chromagram {
		dominant[t] = floats.MaxIdx(column)
	}
	return dominant
}
