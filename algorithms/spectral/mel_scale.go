package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MelScale provides mel frequency conversion utilities (HTK formula)
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// FilterBank builds numFilters overlapping triangular filters, equally spaced
// on the mel scale between lowFreq and highFreq, evaluated at the center
// frequency of each of the fftSize/2+1 bins. The result is a
// numFilters x (fftSize/2+1) matrix. With areaNorm each triangle is scaled by
// 2/(right-left) so filters carry equal energy regardless of width.
func (ms *MelScale) FilterBank(numFilters, fftSize, sampleRate int, lowFreq, highFreq float64, areaNorm bool) (*mat.Dense, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid filter bank parameters: filters=%d fft=%d sample_rate=%d", numFilters, fftSize, sampleRate)
	}
	if lowFreq < 0 || highFreq <= lowFreq {
		return nil, fmt.Errorf("invalid filter bank range [%g, %g]", lowFreq, highFreq)
	}

	numBins := fftSize/2 + 1
	binFreqs := make([]float64, numBins)
	for i := range binFreqs {
		binFreqs[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}

	// numFilters+2 edge frequencies, equally spaced in mel
	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)
	edges := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range edges {
		edges[i] = ms.MelToHz(lowMel + float64(i)*melStep)
	}

	bank := mat.NewDense(numFilters, numBins, nil)
	for m := range numFilters {
		left, center, right := edges[m], edges[m+1], edges[m+2]
		scale := 1.0
		if areaNorm {
			scale = 2.0 / (right - left)
		}

		for k, f := range binFreqs {
			var w float64
			switch {
			case f > left && f <= center:
				w = (f - left) / (center - left)
			case f > center && f < right:
				w = (right - f) / (right - center)
			}
			if w > 0 {
				bank.Set(m, k, w*scale)
			}
		}
	}

	return bank, nil
}
