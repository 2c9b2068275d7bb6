package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MFCC computes Mel-Frequency Cepstral Coefficients from magnitude spectra
type MFCC struct {
	numCoefficients int
	numMelFilters   int
	epsilon         float64
	lifterCoeff     float64

	filterBank *mat.Dense // numMelFilters x freqBins
	dctMatrix  *mat.Dense // numCoefficients x numMelFilters
}

// MFCCParams contains parameters for MFCC computation
type MFCCParams struct {
	NumCoefficients int     `json:"num_coefficients"` // Number of coefficients kept (default: 13)
	NumMelFilters   int     `json:"num_mel_filters"`  // Number of mel filters (default: 128)
	LowFreq         float64 `json:"low_freq"`         // Low frequency bound (default: 0)
	HighFreq        float64 `json:"high_freq"`        // High frequency bound (default: sampleRate/2)
	Epsilon         float64 `json:"epsilon"`          // Added before the logarithm (default: 1e-10)
	LifterCoeff     float64 `json:"lifter_coeff"`     // Sinusoidal liftering, 0 disables
}

// DefaultMFCCParams returns the default parameters for a given sample rate
func DefaultMFCCParams(sampleRate int) MFCCParams {
	return MFCCParams{
		NumCoefficients: 13,
		NumMelFilters:   128,
		LowFreq:         0,
		HighFreq:        float64(sampleRate) / 2.0,
		Epsilon:         1e-10,
	}
}

// NewMFCC builds the mel filter bank and DCT matrix for frames of fftSize samples
func NewMFCC(sampleRate, fftSize int, params MFCCParams) (*MFCC, error) {
	if params.NumCoefficients <= 0 {
		return nil, fmt.Errorf("number of coefficients must be positive, got %d", params.NumCoefficients)
	}
	if params.NumMelFilters <= 0 {
		return nil, fmt.Errorf("number of mel filters must be positive, got %d", params.NumMelFilters)
	}
	if params.NumCoefficients > params.NumMelFilters {
		return nil, fmt.Errorf("number of coefficients (%d) exceeds mel filters (%d)", params.NumCoefficients, params.NumMelFilters)
	}
	if params.HighFreq <= 0 {
		params.HighFreq = float64(sampleRate) / 2.0
	}
	if params.Epsilon <= 0 {
		params.Epsilon = 1e-10
	}

	bank, err := NewMelScale().FilterBank(params.NumMelFilters, fftSize, sampleRate, params.LowFreq, params.HighFreq, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create mel filter bank: %w", err)
	}

	m := &MFCC{
		numCoefficients: params.NumCoefficients,
		numMelFilters:   params.NumMelFilters,
		epsilon:         params.Epsilon,
		lifterCoeff:     params.LifterCoeff,
		filterBank:      bank,
	}
	m.createDCTMatrix()

	return m, nil
}

// Compute returns the cepstral vector of one magnitude spectrum
func (m *MFCC) Compute(magnitudeSpectrum []float64) ([]float64, error) {
	_, bins := m.filterBank.Dims()
	if len(magnitudeSpectrum) != bins {
		return nil, fmt.Errorf("spectrum has %d bins, filter bank expects %d", len(magnitudeSpectrum), bins)
	}

	// filter energies: weighted sums of magnitudes under each triangle
	var melEnergy mat.VecDense
	melEnergy.MulVec(m.filterBank, mat.NewVecDense(bins, magnitudeSpectrum))

	for i := range m.numMelFilters {
		melEnergy.SetVec(i, math.Log(melEnergy.AtVec(i)+m.epsilon))
	}

	var cepstrum mat.VecDense
	cepstrum.MulVec(m.dctMatrix, &melEnergy)

	coeffs := make([]float64, m.numCoefficients)
	for k := range coeffs {
		coeffs[k] = cepstrum.AtVec(k)
	}
	if m.lifterCoeff > 0 {
		m.applyLiftering(coeffs)
	}

	return coeffs, nil
}

// ComputeFrames returns one cepstral vector per spectrogram frame
func (m *MFCC) ComputeFrames(spectrogram [][]float64) ([][]float64, error) {
	frames := make([][]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		coeffs, err := m.Compute(spectrum)
		if err != nil {
			return nil, fmt.Errorf("failed to compute MFCC for frame %d: %w", t, err)
		}
		frames[t] = coeffs
	}
	return frames, nil
}

// ComputeMean returns the elementwise mean of the per-frame cepstral vectors,
// a fixed-length timbre summary of numCoefficients values.
func (m *MFCC) ComputeMean(spectrogram [][]float64) ([]float64, error) {
	if len(spectrogram) == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	frames, err := m.ComputeFrames(spectrogram)
	if err != nil {
		return nil, err
	}

	mean := make([]float64, m.numCoefficients)
	column := make([]float64, len(frames))
	for k := range mean {
		for t := range frames {
			column[t] = frames[t][k]
		}
		mean[k] = stat.Mean(column, nil)
	}

	return mean, nil
}

// NumCoefficients returns the cepstral vector length
func (m *MFCC) NumCoefficients() int {
	return m.numCoefficients
}

// FilterBank returns the mel filter bank (for debugging/visualization)
func (m *MFCC) FilterBank() mat.Matrix {
	return m.filterBank
}

// createDCTMatrix creates the orthonormal type-II DCT matrix, truncated to
// the first numCoefficients rows
func (m *MFCC) createDCTMatrix() {
	n := m.numMelFilters
	m.dctMatrix = mat.NewDense(m.numCoefficients, n, nil)

	for k := range m.numCoefficients {
		norm := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			norm = math.Sqrt(1.0 / float64(n))
		}
		for i := range n {
			m.dctMatrix.Set(k, i, norm*math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n)))
		}
	}
}

// applyLiftering applies sinusoidal liftering in place, leaving C0 untouched
func (m *MFCC) applyLiftering(coeffs []float64) {
	for i := 1; i < len(coeffs); i++ {
		coeffs[i] *= 1.0 + (m.lifterCoeff/2.0)*math.Sin(math.Pi*float64(i)/m.lifterCoeff)
	}
}
