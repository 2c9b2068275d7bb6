package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSections(t *testing.T) {
	// 10 frames of 0.5 s each at hop 1, sample rate 2
	res := &AnalysisResult{
		SampleRate:  2,
		DurationSec: 5,
		TempoBPM:    128,
		EnergyRMS:   []float64{0.05, 0.05, 0.6, 0.6, 0.2, 0.2, 0.7, 0.7, 0.1, 0.1},
		SegmentsSec: []float64{1, 2, 3, 4},
	}

	sections := BuildSections(res, 1)
	require.Len(t, sections, 5)

	wantTypes := []SectionType{SectionIntro, SectionBreakdown, SectionVerse, SectionBreakdown, SectionOutro}
	for i, s := range sections {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, wantTypes[i], s.Type, "section %d", i)
		assert.InDelta(t, 1.0, s.Duration, 1e-12)
		assert.Equal(t, float64(i), s.StartTime)
		assert.Equal(t, float64(i+1), s.EndTime)
	}

	assert.Equal(t, 60, sections[1].Tone.Energy)
	assert.Equal(t, 100, sections[1].Tone.Intensity)
	assert.True(t, sections[1].Tone.StrongStart)
	assert.Equal(t, MoodEnergetic, sections[1].Tone.Mood)

	assert.Equal(t, 5, sections[0].Tone.Energy)
	assert.True(t, sections[0].Tone.StrongStart)
	assert.True(t, sections[0].Tone.BuildingUp)
	assert.False(t, sections[0].Tone.SlowingDown)

	assert.False(t, sections[4].Tone.BuildingUp)
	// slowing down starts past 70% of the six boundaries
	assert.False(t, sections[4].Tone.SlowingDown)
	assert.True(t, toneAttributes(5, 6, 0.1, 128).SlowingDown)
}

func TestSectionTypeRules(t *testing.T) {
	tests := []struct {
		name     string
		index    int
		duration float64
		energy   float64
		want     SectionType
	}{
		{"first", 0, 1, 0.9, SectionIntro},
		{"last", 4, 1, 0.9, SectionOutro},
		{"loud and long", 2, 2, 0.35, SectionChorus},
		{"very loud", 2, 1, 0.55, SectionBreakdown},
		{"medium", 2, 1, 0.2, SectionVerse},
		{"quiet and short", 2, 0.5, 0.1, SectionBridge},
		{"quiet", 2, 1, 0.1, SectionInstrumental},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sectionType(tt.index, 6, tt.duration, 1, tt.energy))
		})
	}
}

func TestMood(t *testing.T) {
	assert.Equal(t, MoodEnergetic, mood(130, 0.4))
	assert.Equal(t, MoodCalm, mood(70, 0.1))
	assert.Equal(t, MoodUplifting, mood(110, 0.3))
	assert.Equal(t, MoodMelancholic, mood(60, 0.5))
	assert.Equal(t, MoodDramatic, mood(150, 0.1))
	assert.Equal(t, MoodUplifting, mood(90, 0.1))
	assert.Equal(t, MoodCalm, mood(0, 0))
}

func TestAnalyzeLabelsSections(t *testing.T) {
	a := newTestAnalyzer(t, func(c *Config) { c.LabelSections = true })

	res, err := a.Analyze(Signal{Samples: clickTrack(3, 22*512), SampleRate: sr})
	require.NoError(t, err)

	require.Len(t, res.Sections, len(res.SegmentsSec)+1)
	assert.Equal(t, SectionIntro, res.Sections[0].Type)
	assert.Equal(t, SectionOutro, res.Sections[len(res.Sections)-1].Type)
	assert.Equal(t, 0.0, res.Sections[0].StartTime)
	assert.InDelta(t, res.DurationSec, res.Sections[len(res.Sections)-1].EndTime, 1e-12)
	for i := 1; i < len(res.Sections); i++ {
		assert.Equal(t, res.Sections[i-1].EndTime, res.Sections[i].StartTime)
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.WindowSize = 0 }},
		{"negative hop", func(c *Config) { c.HopSize = -1 }},
		{"hop above window", func(c *Config) { c.HopSize = c.WindowSize + 1 }},
		{"unknown window", func(c *Config) { c.WindowType = "kaiser" }},
		{"unknown backend", func(c *Config) { c.FFTBackend = "fftw" }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"zero amin", func(c *Config) { c.Amin = 0 }},
		{"negative top db", func(c *Config) { c.TopDB = -1 }},
		{"zero coefficients", func(c *Config) { c.NumCoefficients = 0 }},
		{"more coefficients than filters", func(c *Config) { c.NumMelFilters = 8 }},
		{"unknown chroma norm", func(c *Config) { c.ChromaNorm = "max" }},
		{"zero tuning", func(c *Config) { c.TuningFrequency = 0 }},
		{"empty tempo range", func(c *Config) { c.MinBPM, c.MaxBPM = 120, 120 }},
		{"zero tightness", func(c *Config) { c.BeatTightness = 0 }},
		{"zero segments", func(c *Config) { c.NumSegments = 0 }},
		{"unknown linkage", func(c *Config) { c.Linkage = "single" }},
		{"unknown metric", func(c *Config) { c.SegmentMetric = "chebyshev" }},
		{"zero start tempo", func(c *Config) { c.StartBPM = 0 }},
		{"zero waveform", func(c *Config) { c.WaveformLength = 0 }},
		{"unknown waveform interpolation", func(c *Config) { c.WaveformInterpolation = "sinc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfiguration)

			_, err := NewAnalyzer(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}
