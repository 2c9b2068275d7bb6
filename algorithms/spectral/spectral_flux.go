package spectral

// SpectralFlux computes spectral flux (measure of spectral change)
type SpectralFlux struct{}

// NewSpectralFlux creates a new spectral flux calculator
func NewSpectralFlux() *SpectralFlux {
	return &SpectralFlux{}
}

// OnsetEnvelope returns the half-wave rectified spectral flux per frame:
// the sum over bins of max(0, |X_t| - |X_{t-1}|). The first frame has no
// predecessor and is 0, so the envelope has one value per frame.
func (sf *SpectralFlux) OnsetEnvelope(spectrogram [][]float64) []float64 {
	envelope := make([]float64, len(spectrogram))

	for t := 1; t < len(spectrogram); t++ {
		prev := spectrogram[t-1]
		sum := 0.0
		for f := 0; f < len(spectrogram[t]) && f < len(prev); f++ {
			if diff := spectrogram[t][f] - prev[f]; diff > 0 {
				sum += diff
			}
		}
		envelope[t] = sum
	}

	return envelope
}
