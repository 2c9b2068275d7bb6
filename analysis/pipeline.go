package analysis

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-analyze/algorithms/chroma"
	"github.com/RyanBlaney/sonido-analyze/algorithms/common"
	"github.com/RyanBlaney/sonido-analyze/algorithms/framing"
	"github.com/RyanBlaney/sonido-analyze/algorithms/spectral"
	"github.com/RyanBlaney/sonido-analyze/algorithms/stats"
	"github.com/RyanBlaney/sonido-analyze/algorithms/temporal"
	"github.com/RyanBlaney/sonido-analyze/algorithms/windowing"
	"github.com/RyanBlaney/sonido-analyze/logging"
	"github.com/RyanBlaney/sonido-analyze/transcode"
)

// Analyzer runs the feature pipeline. It is safe for concurrent use: every
// call builds its own Pipeline and shares nothing mutable.
type Analyzer struct {
	config Config
	logger logging.Logger
}

// NewAnalyzer validates config and creates an analyzer
func NewAnalyzer(config Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "analyzer",
		}),
	}, nil
}

// WithLogger returns a copy of the analyzer that logs to logger
func (a *Analyzer) WithLogger(logger logging.Logger) *Analyzer {
	clone := *a
	clone.logger = logger
	return &clone
}

// Config returns the analyzer configuration
func (a *Analyzer) Config() Config {
	return a.config
}

// Analyze runs every extractor over signal. On failure no result is returned
// and the error is a *PipelineError naming the stage.
func (a *Analyzer) Analyze(signal Signal) (*AnalysisResult, error) {
	p := NewPipeline(a.config, a.logger)
	if err := p.Load(signal); err != nil {
		return nil, err
	}
	if err := p.Extract(); err != nil {
		return nil, err
	}
	return p.Result()
}

// AnalyzeAudio analyzes decoded audio
func (a *Analyzer) AnalyzeAudio(audio *transcode.AudioData) (*AnalysisResult, error) {
	return a.Analyze(SignalFromAudio(audio))
}

// Pipeline is a single-use run over one signal:
// Idle -> Loaded -> Extracting -> Assembled -> Done, or Failed from any step.
type Pipeline struct {
	config Config
	logger logging.Logger
	state  State
	signal Signal
	result *AnalysisResult
	err    error
}

// NewPipeline creates an idle pipeline
func NewPipeline(config Config, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.WithFields(logging.Fields{"component": "analyzer"})
	}
	return &Pipeline{
		config: config,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state
func (p *Pipeline) State() State {
	return p.state
}

// Err returns the error that moved the pipeline to Failed
func (p *Pipeline) Err() error {
	return p.err
}

func (p *Pipeline) transition(to State) {
	p.logger.Debug("Pipeline state change", logging.Fields{
		"from": p.state.String(),
		"to":   to.String(),
	})
	p.state = to
}

func (p *Pipeline) fail(err error) error {
	p.err = err
	p.result = nil
	p.transition(StateFailed)
	p.logger.Error(err, "Analysis failed")
	return err
}

// Load validates the configuration and takes a private copy of the signal
func (p *Pipeline) Load(signal Signal) error {
	if p.state != StateIdle {
		return fmt.Errorf("%w: load from %s", ErrInvalidState, p.state)
	}

	if err := p.config.Validate(); err != nil {
		return p.fail(stageError(StageLoad, err))
	}

	switch {
	case len(signal.Samples) == 0:
		return p.fail(stageError(StageLoad, ErrEmptySignal))
	case signal.SampleRate <= 0:
		return p.fail(stageError(StageLoad,
			fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfiguration, signal.SampleRate)))
	case len(signal.Samples) < p.config.WindowSize:
		return p.fail(stageError(StageLoad,
			fmt.Errorf("%w: %d samples, window is %d", ErrSignalTooShort, len(signal.Samples), p.config.WindowSize)))
	}

	samples := make([]float64, len(signal.Samples))
	copy(samples, signal.Samples)
	p.signal = Signal{Samples: samples, SampleRate: signal.SampleRate}

	p.logger = p.logger.WithFields(logging.Fields{
		"sample_rate": signal.SampleRate,
		"samples":     len(samples),
	})
	p.transition(StateLoaded)
	return nil
}

// features collects stage outputs. Each stage writes only its own fields.
type features struct {
	energy    []float64
	db        [][]float64
	centroid  []float64
	mfccMean  []float64
	tempo     float64
	beats     []float64
	segments  []float64
	waveform  []float64
	numFrames int
}

// Extract runs the extractors. The spectrogram is computed first; the
// extractors that only read it (or the raw signal) then run concurrently.
func (p *Pipeline) Extract() error {
	if p.state != StateLoaded {
		return fmt.Errorf("%w: extract from %s", ErrInvalidState, p.state)
	}
	p.transition(StateExtracting)
	start := time.Now()

	cfg := p.config
	sig := p.signal

	window, err := windowing.New(cfg.WindowType, cfg.WindowSize)
	if err != nil {
		return p.fail(stageError(StageSpectral, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)))
	}
	framer, err := framing.NewFramer(cfg.WindowSize, cfg.HopSize, window)
	if err != nil {
		return p.fail(stageError(StageSpectral, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)))
	}
	fft, err := spectral.NewFFTWithBackend(cfg.FFTBackend)
	if err != nil {
		return p.fail(stageError(StageSpectral, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)))
	}

	stft, err := spectral.NewSTFT(fft, cfg.Workers).WithLogger(p.logger).Compute(sig.Samples, framer, sig.SampleRate)
	if err != nil {
		return p.fail(stageError(StageSpectral, err))
	}

	f := &features{numFrames: stft.TimeFrames}
	// frames x bins; shared read-only by the spectrogram output and rhythm
	db := spectral.AmplitudeToDB(stft.Magnitude, cfg.Amin, cfg.TopDB)

	var g errgroup.Group

	g.Go(func() error {
		f.energy = temporal.NewEnergy(framer).ComputeShortTimeEnergy(sig.Samples)
		return nil
	})

	g.Go(func() error {
		f.db = transpose(db)
		return nil
	})

	g.Go(func() error {
		f.centroid = spectral.NewSpectralCentroid(sig.SampleRate, cfg.WindowSize).ComputeFrames(stft.Magnitude)
		return nil
	})

	g.Go(func() error {
		params := spectral.DefaultMFCCParams(sig.SampleRate)
		params.NumCoefficients = cfg.NumCoefficients
		params.NumMelFilters = cfg.NumMelFilters
		params.Epsilon = cfg.Amin

		mfcc, err := spectral.NewMFCC(sig.SampleRate, cfg.WindowSize, params)
		if err != nil {
			return stageError(StageCepstral, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err))
		}
		mean, err := mfcc.ComputeMean(stft.Magnitude)
		if err != nil {
			return stageError(StageCepstral, err)
		}
		f.mfccMean = mean
		return nil
	})

	g.Go(func() error {
		tempo, beats := p.rhythm(db)
		f.tempo, f.beats = tempo, beats
		return nil
	})

	g.Go(func() error {
		segments, err := p.segment(stft)
		if err != nil {
			return err
		}
		f.segments = segments
		return nil
	})

	g.Go(func() error {
		method, err := common.ParseInterpolation(cfg.WaveformInterpolation)
		if err != nil {
			return stageError(StageWaveform, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err))
		}
		f.waveform = temporal.NewWaveform(cfg.WaveformLength).WithInterpolation(method).Summarize(sig.Samples)
		return nil
	})

	if err := g.Wait(); err != nil {
		return p.fail(err)
	}

	p.result = p.assemble(f)
	p.transition(StateAssembled)

	p.logger.Info("Analysis completed", logging.Fields{
		"frames":       f.numFrames,
		"tempo_bpm":    f.tempo,
		"beats":        len(f.beats),
		"segments":     len(f.segments),
		"duration_sec": sig.Duration(),
		"elapsed_ms":   time.Since(start).Milliseconds(),
	})
	return nil
}

// rhythm estimates tempo and beats from the dB spectrogram (frames x bins).
// The onset envelope is the positive dB flux, so the flatness test does not
// depend on level or pitch. A degenerate envelope yields 0 and no beats
// rather than an error.
func (p *Pipeline) rhythm(db [][]float64) (float64, []float64) {
	cfg := p.config
	logger := p.logger.WithFields(logging.Fields{"stage": string(StageRhythm)})

	envelope := spectral.NewSpectralFlux().OnsetEnvelope(db)

	numBins := 0
	if len(db) > 0 {
		numBins = len(db[0])
	}

	estimator := temporal.NewTempoEstimation(cfg.MinBPM, cfg.MaxBPM).WithStartBPM(cfg.StartBPM)
	if estimator.IsFlat(envelope, numBins) {
		logger.Debug("Onset envelope is flat, no tempo")
		return 0, []float64{}
	}

	estimate := estimator.Estimate(envelope, cfg.HopSize, p.signal.SampleRate)
	if estimate.BPM <= 0 {
		logger.Debug("No periodicity in tempo range")
		return 0, []float64{}
	}

	frames := temporal.NewBeatTracker(cfg.BeatTightness).Track(envelope, estimate.BPM, cfg.HopSize, p.signal.SampleRate)
	beats := make([]float64, len(frames))
	for i, frame := range frames {
		beats[i] = framing.FrameToSeconds(frame, cfg.HopSize, p.signal.SampleRate)
	}

	logger.Debug("Tempo estimated", logging.Fields{
		"bpm":        estimate.BPM,
		"lag_frames": estimate.LagFrames,
		"confidence": estimate.Confidence,
		"beats":      len(beats),
	})
	return estimate.BPM, beats
}

// segment clusters the chroma frames into NumSegments contiguous regions and
// returns the interior boundaries in seconds
func (p *Pipeline) segment(stft *spectral.STFTResult) ([]float64, error) {
	cfg := p.config

	extractor, err := chroma.NewChromaSTFT(cfg.TuningFrequency, cfg.ChromaNorm)
	if err != nil {
		return nil, stageError(StageChroma, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err))
	}
	chromagram := extractor.Compute(stft)

	clustering := stats.NewClusteringWithParams(stats.ClusteringParams{
		NumClusters: cfg.NumSegments,
		Linkage:     cfg.Linkage,
		Distance:    cfg.SegmentMetric,
	})
	result, err := clustering.Fit(chromagram)
	if err != nil {
		if errors.Is(err, stats.ErrClusterCount) {
			err = fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		return nil, stageError(StageSegmentation, err)
	}

	boundaries := make([]float64, len(result.Boundaries))
	for i, frame := range result.Boundaries {
		boundaries[i] = framing.FrameToSeconds(frame, cfg.HopSize, p.signal.SampleRate)
	}
	return boundaries, nil
}

func (p *Pipeline) assemble(f *features) *AnalysisResult {
	result := &AnalysisResult{
		SampleRate:       p.signal.SampleRate,
		DurationSec:      p.signal.Duration(),
		EnergyRMS:        f.energy,
		SpectrogramDB:    f.db,
		MFCCMean:         f.mfccMean,
		TempoBPM:         f.tempo,
		BeatTimes:        f.beats,
		SegmentsSec:      f.segments,
		SpectralCentroid: f.centroid,
		WaveformData:     f.waveform,
	}

	if p.config.LabelSections {
		result.Sections = BuildSections(result, p.config.HopSize)
	}
	return result
}

// Result hands over the assembled result and completes the pipeline
func (p *Pipeline) Result() (*AnalysisResult, error) {
	if p.state != StateAssembled {
		if p.state == StateFailed {
			return nil, p.err
		}
		return nil, fmt.Errorf("%w: result from %s", ErrInvalidState, p.state)
	}
	result := p.result
	p.result = nil
	p.transition(StateDone)
	return result, nil
}
