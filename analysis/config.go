package analysis

import (
	"fmt"

	"github.com/RyanBlaney/sonido-analyze/algorithms/chroma"
	"github.com/RyanBlaney/sonido-analyze/algorithms/common"
	"github.com/RyanBlaney/sonido-analyze/algorithms/spectral"
	"github.com/RyanBlaney/sonido-analyze/algorithms/stats"
	"github.com/RyanBlaney/sonido-analyze/algorithms/temporal"
	"github.com/RyanBlaney/sonido-analyze/algorithms/windowing"
)

// Config holds the request-scoped analysis parameters
type Config struct {
	// Framing and spectral analysis
	WindowSize int              `json:"window_size"`
	HopSize    int              `json:"hop_size"`
	WindowType windowing.Type   `json:"window_type"`
	FFTBackend spectral.Backend `json:"fft_backend"`
	Workers    int              `json:"workers"` // 0 sizes the STFT pool automatically

	// dB conversion
	Amin  float64 `json:"amin"`   // magnitude floor before the logarithm
	TopDB float64 `json:"top_db"` // dynamic range clip, 0 disables

	// Cepstral summary
	NumCoefficients int `json:"num_coefficients"`
	NumMelFilters   int `json:"num_mel_filters"`

	// Chroma
	ChromaNorm      chroma.Norm `json:"chroma_norm"`
	TuningFrequency float64     `json:"tuning_frequency"`

	// Rhythm
	MinBPM        float64 `json:"min_bpm"`
	MaxBPM        float64 `json:"max_bpm"`
	StartBPM      float64 `json:"start_bpm"` // centre of the tempo prior
	BeatTightness float64 `json:"beat_tightness"`

	// Segmentation
	NumSegments   int                    `json:"num_segments"`
	Linkage       stats.LinkageCriterion `json:"linkage"`
	SegmentMetric stats.DistanceMetric   `json:"segment_metric"`

	// Output shaping
	WaveformLength        int    `json:"waveform_length"`
	WaveformInterpolation string `json:"waveform_interpolation"` // linear or cubic
	LabelSections         bool   `json:"label_sections"`
}

// DefaultConfig returns the default analysis configuration
func DefaultConfig() Config {
	return Config{
		WindowSize:            2048,
		HopSize:               512,
		WindowType:            windowing.TypeHann,
		FFTBackend:            spectral.BackendGoDSP,
		Workers:               0,
		Amin:                  spectral.DefaultAmin,
		TopDB:                 80,
		NumCoefficients:       13,
		NumMelFilters:         128,
		ChromaNorm:            chroma.NormL2,
		TuningFrequency:       440,
		MinBPM:                30,
		MaxBPM:                300,
		StartBPM:              temporal.DefaultStartBPM,
		BeatTightness:         100,
		NumSegments:           4,
		Linkage:               stats.CentroidLinkage,
		SegmentMetric:         stats.EuclideanDistance,
		WaveformLength:        1000,
		WaveformInterpolation: "linear",
		LabelSections:         false,
	}
}

// Validate checks the configuration. Every failure wraps
// ErrInvalidConfiguration.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}

	switch {
	case c.WindowSize <= 0:
		return invalid("window size must be positive, got %d", c.WindowSize)
	case c.HopSize <= 0:
		return invalid("hop size must be positive, got %d", c.HopSize)
	case c.HopSize > c.WindowSize:
		return invalid("hop size %d exceeds window size %d", c.HopSize, c.WindowSize)
	case !windowing.Valid(c.WindowType):
		return invalid("unknown window type %q", c.WindowType)
	case !spectral.ValidBackend(c.FFTBackend):
		return invalid("unknown fft backend %q", c.FFTBackend)
	case c.Workers < 0:
		return invalid("worker count must not be negative, got %d", c.Workers)
	case c.Amin <= 0:
		return invalid("amin must be positive, got %g", c.Amin)
	case c.TopDB < 0:
		return invalid("top_db must not be negative, got %g", c.TopDB)
	case c.NumCoefficients <= 0:
		return invalid("coefficient count must be positive, got %d", c.NumCoefficients)
	case c.NumMelFilters <= 0:
		return invalid("mel filter count must be positive, got %d", c.NumMelFilters)
	case c.NumCoefficients > c.NumMelFilters:
		return invalid("%d coefficients need at least as many mel filters, got %d", c.NumCoefficients, c.NumMelFilters)
	case !chroma.ValidNorm(c.ChromaNorm):
		return invalid("unknown chroma norm %q", c.ChromaNorm)
	case c.TuningFrequency <= 0:
		return invalid("tuning frequency must be positive, got %g", c.TuningFrequency)
	case c.MinBPM <= 0:
		return invalid("minimum tempo must be positive, got %g", c.MinBPM)
	case c.MinBPM >= c.MaxBPM:
		return invalid("tempo range [%g, %g] is empty", c.MinBPM, c.MaxBPM)
	case c.StartBPM <= 0:
		return invalid("start tempo must be positive, got %g", c.StartBPM)
	case c.BeatTightness <= 0:
		return invalid("beat tightness must be positive, got %g", c.BeatTightness)
	case c.NumSegments < 1:
		return invalid("segment count must be at least 1, got %d", c.NumSegments)
	case !stats.ValidLinkage(c.Linkage):
		return invalid("unknown linkage %q", c.Linkage)
	case !stats.ValidDistanceMetric(c.SegmentMetric):
		return invalid("unknown segment metric %q", c.SegmentMetric)
	case c.WaveformLength <= 0:
		return invalid("waveform length must be positive, got %d", c.WaveformLength)
	}
	if _, err := common.ParseInterpolation(c.WaveformInterpolation); err != nil {
		return invalid("waveform %v", err)
	}

	return nil
}
