package analysis

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-analyze/algorithms/spectral"
	"github.com/RyanBlaney/sonido-analyze/logging"
	"github.com/RyanBlaney/sonido-analyze/transcode"
)

const sr = 22050

func sine(freq, seconds, amplitude float64) []float64 {
	n := int(seconds * sr)
	s := make([]float64, n)
	for i := range s {
		s[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sr)
	}
	return s
}

// clickTrack places short decaying 1 kHz bursts every period samples, each
// rounded to the nearest sample
func clickTrack(seconds, period float64) []float64 {
	n := int(seconds * sr)
	s := make([]float64, n)
	for k := 0; ; k++ {
		start := 1000 + int(math.Round(float64(k)*period))
		if start >= n {
			return s
		}
		for i := 0; i < 256 && start+i < n; i++ {
			s[start+i] = 0.8 * math.Exp(-float64(i)/40) * math.Sin(2*math.Pi*1000*float64(i)/sr)
		}
	}
}

func assertBeatSpacing(t *testing.T, beats []float64, period float64) {
	t.Helper()
	for i := 1; i < len(beats); i++ {
		assert.InDelta(t, period, beats[i]-beats[i-1], 0.05, "beat %d", i)
	}
}

func newTestAnalyzer(t *testing.T, mutate func(*Config)) *Analyzer {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	return a.WithLogger(&logging.NoOpLogger{})
}

func assertStrictlyIncreasingWithin(t *testing.T, values []float64, upper float64) {
	t.Helper()
	for i, v := range values {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, upper)
		if i > 0 {
			assert.Greater(t, v, values[i-1])
		}
	}
}

func assertResultInvariants(t *testing.T, res *AnalysisResult, cfg Config) {
	t.Helper()

	frames := len(res.EnergyRMS)
	require.Positive(t, frames)
	assert.Len(t, res.SpectralCentroid, frames)

	require.Len(t, res.SpectrogramDB, cfg.WindowSize/2+1)
	maxDB := math.Inf(-1)
	for _, row := range res.SpectrogramDB {
		require.Len(t, row, frames)
		for _, v := range row {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			require.LessOrEqual(t, v, 0.0)
			maxDB = math.Max(maxDB, v)
		}
	}
	assert.Equal(t, 0.0, maxDB)

	assert.Len(t, res.MFCCMean, cfg.NumCoefficients)
	assert.Len(t, res.WaveformData, cfg.WaveformLength)
	for _, v := range res.WaveformData {
		assert.GreaterOrEqual(t, v, 0.0)
	}

	assert.GreaterOrEqual(t, res.TempoBPM, 0.0)
	assert.NotNil(t, res.BeatTimes)
	assertStrictlyIncreasingWithin(t, res.BeatTimes, res.DurationSec)

	assert.Less(t, len(res.SegmentsSec), cfg.NumSegments)
	assertStrictlyIncreasingWithin(t, res.SegmentsSec, res.DurationSec)
}

func TestAnalyzeSilence(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	res, err := a.Analyze(Signal{Samples: make([]float64, sr), SampleRate: sr})
	require.NoError(t, err)
	assertResultInvariants(t, res, a.Config())

	assert.Equal(t, sr, res.SampleRate)
	assert.InDelta(t, 1.0, res.DurationSec, 1e-12)
	assert.Len(t, res.EnergyRMS, 1+(sr-2048)/512)
	for _, v := range res.EnergyRMS {
		assert.Equal(t, 0.0, v)
	}
	for _, v := range res.SpectralCentroid {
		assert.Equal(t, 0.0, v)
	}
	for _, v := range res.WaveformData {
		assert.Equal(t, 0.0, v)
	}
	assert.Equal(t, 0.0, res.TempoBPM)
	assert.Empty(t, res.BeatTimes)
	assert.Nil(t, res.Sections)
}

func TestAnalyzeSineRoundTrip(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	binWidth := float64(sr) / 2048

	for _, freq := range []float64{40 * binWidth, 440} {
		res, err := a.Analyze(Signal{Samples: sine(freq, 2, 0.5), SampleRate: sr})
		require.NoError(t, err)
		assertResultInvariants(t, res, a.Config())

		for _, c := range res.SpectralCentroid {
			assert.InDelta(t, freq, c, binWidth, "freq %g", freq)
		}
		assert.Equal(t, 0.0, res.TempoBPM, "freq %g", freq)
		assert.Empty(t, res.BeatTimes, "freq %g", freq)

		for _, e := range res.EnergyRMS {
			assert.InDelta(t, 0.5/math.Sqrt2, e, 0.01)
		}
	}
}

func TestAnalyzeLowTonesHaveNoTempo(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	for _, freq := range []float64{20, 25, 30, 35, 40, 45, 50, 60, 80, 100} {
		for _, amplitude := range []float64{0.01, 0.5} {
			t.Run(fmt.Sprintf("%g Hz at %g", freq, amplitude), func(t *testing.T) {
				res, err := a.Analyze(Signal{Samples: sine(freq, 3, amplitude), SampleRate: sr})
				require.NoError(t, err)
				assert.Equal(t, 0.0, res.TempoBPM)
				assert.Empty(t, res.BeatTimes)
			})
		}
	}
}

func TestAnalyzeClickTrack(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	period := 22 * 512.0

	res, err := a.Analyze(Signal{Samples: clickTrack(6, period), SampleRate: sr})
	require.NoError(t, err)
	assertResultInvariants(t, res, a.Config())

	assert.InEpsilon(t, 60.0*sr/period, res.TempoBPM, 0.01)
	require.GreaterOrEqual(t, len(res.BeatTimes), 5)
	assertBeatSpacing(t, res.BeatTimes, period/sr)
}

func TestAnalyzeClickTrackTempos(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	const seconds = 10.0

	// none of these periods is a whole number of hops
	for _, bpm := range []float64{75, 100, 120, 140} {
		t.Run(fmt.Sprintf("%g bpm", bpm), func(t *testing.T) {
			period := 60 * sr / bpm

			res, err := a.Analyze(Signal{Samples: clickTrack(seconds, period), SampleRate: sr})
			require.NoError(t, err)
			assertResultInvariants(t, res, a.Config())

			assert.InEpsilon(t, bpm, res.TempoBPM, 0.03)
			require.GreaterOrEqual(t, len(res.BeatTimes), int(seconds*bpm/120))
			assertBeatSpacing(t, res.BeatTimes, 60/bpm)
		})
	}
}

func TestAnalyzeCubicWaveform(t *testing.T) {
	// shorter than the summary, so every point is interpolated
	signal := Signal{Samples: sine(440, 0.5, 0.5), SampleRate: sr}
	mutate := func(c *Config) { c.WaveformLength = 20000 }

	linear, err := newTestAnalyzer(t, mutate).Analyze(signal)
	require.NoError(t, err)
	cubic, err := newTestAnalyzer(t, func(c *Config) {
		mutate(c)
		c.WaveformInterpolation = "cubic"
	}).Analyze(signal)
	require.NoError(t, err)

	require.Len(t, cubic.WaveformData, 20000)
	for _, v := range cubic.WaveformData {
		assert.GreaterOrEqual(t, v, 0.0)
	}
	assert.NotEqual(t, linear.WaveformData, cubic.WaveformData)
	assert.Equal(t, linear.TempoBPM, cubic.TempoBPM)
}

func TestAnalyzeFailures(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	tests := []struct {
		name   string
		signal Signal
		want   error
		stage  Stage
	}{
		{"empty", Signal{SampleRate: sr}, ErrEmptySignal, StageLoad},
		{"shorter than a window", Signal{Samples: make([]float64, 10), SampleRate: sr}, ErrSignalTooShort, StageLoad},
		{"no sample rate", Signal{Samples: make([]float64, 4096)}, ErrInvalidConfiguration, StageLoad},
		{"fewer frames than segments", Signal{Samples: sine(440, 2048.0/sr, 0.5), SampleRate: sr}, ErrInvalidConfiguration, StageSegmentation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Analyze(tt.signal)
			assert.Nil(t, res)
			require.ErrorIs(t, err, tt.want)

			var pe *PipelineError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.stage, pe.Stage)
		})
	}
}

func TestPipelineStates(t *testing.T) {
	p := NewPipeline(DefaultConfig(), &logging.NoOpLogger{})
	assert.Equal(t, StateIdle, p.State())

	require.ErrorIs(t, p.Extract(), ErrInvalidState)
	_, err := p.Result()
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, p.Load(Signal{Samples: sine(440, 0.5, 0.5), SampleRate: sr}))
	assert.Equal(t, StateLoaded, p.State())
	require.ErrorIs(t, p.Load(Signal{}), ErrInvalidState)

	require.NoError(t, p.Extract())
	assert.Equal(t, StateAssembled, p.State())

	res, err := p.Result()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, StateDone, p.State())

	_, err = p.Result()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPipelineFailedState(t *testing.T) {
	p := NewPipeline(DefaultConfig(), &logging.NoOpLogger{})

	err := p.Load(Signal{Samples: make([]float64, 10), SampleRate: sr})
	require.ErrorIs(t, err, ErrSignalTooShort)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, err, p.Err())

	res, err := p.Result()
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSignalTooShort)
	assert.ErrorIs(t, p.Extract(), ErrInvalidState)
}

func TestLoadCopiesSignal(t *testing.T) {
	samples := sine(440, 0.5, 0.5)
	p := NewPipeline(DefaultConfig(), &logging.NoOpLogger{})
	require.NoError(t, p.Load(Signal{Samples: samples, SampleRate: sr}))

	for i := range samples {
		samples[i] = 0
	}
	require.NoError(t, p.Extract())
	res, err := p.Result()
	require.NoError(t, err)
	assert.Greater(t, res.EnergyRMS[0], 0.1)
}

func TestFFTBackendsAgree(t *testing.T) {
	signal := Signal{Samples: clickTrack(3, 22*512), SampleRate: sr}

	dsp, err := newTestAnalyzer(t, nil).Analyze(signal)
	require.NoError(t, err)
	gonum, err := newTestAnalyzer(t, func(c *Config) { c.FFTBackend = spectral.BackendGonum }).Analyze(signal)
	require.NoError(t, err)

	assert.InDeltaSlice(t, dsp.SpectralCentroid, gonum.SpectralCentroid, 1e-6)
	assert.InDeltaSlice(t, dsp.MFCCMean, gonum.MFCCMean, 1e-6)
	assert.InDelta(t, dsp.TempoBPM, gonum.TempoBPM, 1e-6)
}

func TestAnalyzeConcurrentRequests(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	signals := []Signal{
		{Samples: sine(440, 1, 0.5), SampleRate: sr},
		{Samples: clickTrack(2, 22*512), SampleRate: sr},
		{Samples: make([]float64, sr), SampleRate: sr},
	}

	want := make([]*AnalysisResult, len(signals))
	for i, s := range signals {
		res, err := a.Analyze(s)
		require.NoError(t, err)
		want[i] = res
	}

	var wg sync.WaitGroup
	got := make([]*AnalysisResult, len(signals)*4)
	errs := make([]error, len(got))
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], errs[i] = a.Analyze(signals[i%len(signals)])
		}()
	}
	wg.Wait()

	for i := range got {
		require.NoError(t, errs[i])
		assert.Equal(t, want[i%len(signals)], got[i])
	}
}

func TestAnalyzeAudio(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	audio := &transcode.AudioData{PCM: sine(440, 0.5, 0.5), SampleRate: sr, Channels: 1}

	res, err := a.AnalyzeAudio(audio)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.DurationSec, 1e-12)

	_, err = a.AnalyzeAudio(nil)
	assert.ErrorIs(t, err, ErrEmptySignal)
}

func TestAnalyzeLogs(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	a = a.WithLogger(logging.NewWriterLogger(&buf, logging.DebugLevel))

	_, err = a.Analyze(Signal{Samples: sine(440, 0.5, 0.5), SampleRate: sr})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Analysis completed")
	assert.Contains(t, out, "assembled")
}
