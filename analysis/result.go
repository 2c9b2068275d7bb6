package analysis

// AnalysisResult is the consolidated feature set of one clip
type AnalysisResult struct {
	SampleRate       int         `json:"sample_rate"`
	DurationSec      float64     `json:"duration_sec"`
	EnergyRMS        []float64   `json:"energy_rms"`     // one value per frame
	SpectrogramDB    [][]float64 `json:"spectrogram_db"` // frequency bins x frames, <= 0
	MFCCMean         []float64   `json:"mfcc_mean"`
	TempoBPM         float64     `json:"tempo_bpm"`
	BeatTimes        []float64   `json:"beat_times"`
	SegmentsSec      []float64   `json:"segments_sec"` // interior boundaries only
	SpectralCentroid []float64   `json:"spectral_centroid"`
	WaveformData     []float64   `json:"waveform_data"`
	Sections         []Section   `json:"sections,omitempty"`
}

// transpose turns a frames x bins matrix into bins x frames
func transpose(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return [][]float64{}
	}
	out := make([][]float64, len(m[0]))
	for f := range out {
		out[f] = make([]float64, len(m))
		for t, row := range m {
			out[f][t] = row[f]
		}
	}
	return out
}
