package spectral

// SpectralCentroid computes the spectral centroid (center of mass) of a spectrum
type SpectralCentroid struct {
	freqBins []float64
}

// NewSpectralCentroid creates a centroid calculator for spectra produced by
// windows of windowSize samples at sampleRate
func NewSpectralCentroid(sampleRate, windowSize int) *SpectralCentroid {
	numBins := windowSize/2 + 1
	freqBins := make([]float64, numBins)
	for i := range numBins {
		freqBins[i] = float64(i) * float64(sampleRate) / float64(windowSize)
	}
	return &SpectralCentroid{freqBins: freqBins}
}

// Compute calculates the spectral centroid of one magnitude spectrum.
// A silent spectrum has centroid 0.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	numerator := 0.0
	denominator := 0.0

	for i := 0; i < len(spectrum) && i < len(sc.freqBins); i++ {
		numerator += sc.freqBins[i] * spectrum[i]
		denominator += spectrum[i]
	}

	if denominator == 0 {
		return 0
	}

	return numerator / denominator
}

// ComputeFrames computes one centroid per spectrogram frame
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
	}
	return centroids
}

// FrequencyBins returns a copy of the bin center frequencies
func (sc *SpectralCentroid) FrequencyBins() []float64 {
	bins := make([]float64, len(sc.freqBins))
	copy(bins, sc.freqBins)
	return bins
}
