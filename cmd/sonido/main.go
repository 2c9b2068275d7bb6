// Command sonido extracts music features from audio files.
//
// Usage:
//
//	sonido analyze [flags] <file>
//	sonido serve [flags]
//
// Every flag default can be overridden with a SONIDO_* environment
// variable, optionally loaded from a .env file in the working directory.
//
// Examples:
//
//	sonido analyze -pretty song.wav
//	sonido analyze -sections -segments 6 song.mp3
//	SONIDO_ADDR=:8080 sonido serve -log-format json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/RyanBlaney/sonido-analyze/algorithms/chroma"
	"github.com/RyanBlaney/sonido-analyze/algorithms/spectral"
	"github.com/RyanBlaney/sonido-analyze/algorithms/stats"
	"github.com/RyanBlaney/sonido-analyze/algorithms/windowing"
	"github.com/RyanBlaney/sonido-analyze/analysis"
	"github.com/RyanBlaney/sonido-analyze/logging"
	"github.com/RyanBlaney/sonido-analyze/server"
	"github.com/RyanBlaney/sonido-analyze/transcode"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  sonido analyze [flags] <file>  - print the analysis of an audio file as JSON")
	fmt.Fprintln(w, "  sonido serve [flags]           - run the HTTP analysis service")
}

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(ctx, os.Args[2:], os.Stdout)
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "help", "-h", "-help", "--help":
		usage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "sonido: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by every command
type options struct {
	logFormat string
	logLevel  string

	analysis analysis.Config
	decoder  transcode.DecoderConfig

	windowType string
	backend    string
	norm       string
	linkage    string
	metric     string
}

func bindOptions(fs *flag.FlagSet) *options {
	opts := &options{decoder: *transcode.DefaultDecoderConfig()}
	defaults := analysis.DefaultConfig()

	fs.StringVar(&opts.logFormat, "log-format", envStr("LOG_FORMAT", "text"), "log format: text or json")
	fs.StringVar(&opts.logLevel, "log-level", envStr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")

	cfg := &opts.analysis
	fs.IntVar(&cfg.WindowSize, "window", envInt("WINDOW_SIZE", defaults.WindowSize), "analysis window length in samples")
	fs.IntVar(&cfg.HopSize, "hop", envInt("HOP_SIZE", defaults.HopSize), "hop length in samples")
	fs.StringVar(&opts.windowType, "window-type", envStr("WINDOW_TYPE", string(defaults.WindowType)), "window function")
	fs.StringVar(&opts.backend, "fft", envStr("FFT_BACKEND", string(defaults.FFTBackend)), "FFT backend: go-dsp or gonum")
	fs.IntVar(&cfg.Workers, "workers", envInt("WORKERS", defaults.Workers), "STFT workers, 0 for one per CPU")
	fs.Float64Var(&cfg.Amin, "amin", envFloat("AMIN", defaults.Amin), "magnitude floor for dB conversion")
	fs.Float64Var(&cfg.TopDB, "top-db", envFloat("TOP_DB", defaults.TopDB), "dB range below the peak to keep, 0 disables")
	fs.IntVar(&cfg.NumCoefficients, "mfcc", envInt("NUM_COEFFICIENTS", defaults.NumCoefficients), "cepstral coefficients")
	fs.IntVar(&cfg.NumMelFilters, "mels", envInt("NUM_MEL_FILTERS", defaults.NumMelFilters), "mel filters")
	fs.StringVar(&opts.norm, "chroma-norm", envStr("CHROMA_NORM", string(defaults.ChromaNorm)), "chroma normalization")
	fs.Float64Var(&cfg.TuningFrequency, "tuning", envFloat("TUNING_FREQUENCY", defaults.TuningFrequency), "A4 reference in Hz")
	fs.Float64Var(&cfg.MinBPM, "min-bpm", envFloat("MIN_BPM", defaults.MinBPM), "slowest tempo considered")
	fs.Float64Var(&cfg.MaxBPM, "max-bpm", envFloat("MAX_BPM", defaults.MaxBPM), "fastest tempo considered")
	fs.Float64Var(&cfg.StartBPM, "start-bpm", envFloat("START_BPM", defaults.StartBPM), "centre of the tempo prior")
	fs.Float64Var(&cfg.BeatTightness, "tightness", envFloat("BEAT_TIGHTNESS", defaults.BeatTightness), "beat spacing penalty")
	fs.IntVar(&cfg.NumSegments, "segments", envInt("NUM_SEGMENTS", defaults.NumSegments), "number of segments")
	fs.StringVar(&opts.linkage, "linkage", envStr("LINKAGE", string(defaults.Linkage)), "segment linkage: centroid or ward")
	fs.StringVar(&opts.metric, "metric", envStr("SEGMENT_METRIC", string(defaults.SegmentMetric)), "segment distance metric")
	fs.IntVar(&cfg.WaveformLength, "waveform", envInt("WAVEFORM_LENGTH", defaults.WaveformLength), "waveform summary length")
	fs.StringVar(&cfg.WaveformInterpolation, "waveform-interp", envStr("WAVEFORM_INTERPOLATION", defaults.WaveformInterpolation), "waveform stretch: linear or cubic")
	fs.BoolVar(&cfg.LabelSections, "sections", envBool("LABEL_SECTIONS", defaults.LabelSections), "label song sections")

	dec := &opts.decoder
	fs.IntVar(&dec.TargetSampleRate, "sample-rate", envInt("SAMPLE_RATE", dec.TargetSampleRate), "resample to this rate, 0 keeps the native rate")
	fs.DurationVar(&dec.MaxDuration, "max-duration", envDuration("MAX_DURATION", dec.MaxDuration), "decode at most this much audio, 0 for all")
	fs.StringVar(&dec.FFmpegPath, "ffmpeg", envStr("FFMPEG_PATH", dec.FFmpegPath), "ffmpeg binary")
	fs.StringVar(&dec.FFprobePath, "ffprobe", envStr("FFPROBE_PATH", dec.FFprobePath), "ffprobe binary")
	fs.DurationVar(&dec.Timeout, "decode-timeout", envDuration("DECODE_TIMEOUT", dec.Timeout), "ffmpeg timeout")
	fs.StringVar(&dec.TempDir, "temp-dir", envStr("TEMP_DIR", dec.TempDir), "directory for spooled uploads")

	return opts
}

// build resolves the named flags and creates the shared components
func (o *options) build() (*analysis.Analyzer, *transcode.Decoder, logging.Logger, error) {
	logger, err := newLogger(o.logFormat, o.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	logging.SetGlobalLogger(logger)

	o.analysis.WindowType = windowing.Type(o.windowType)
	o.analysis.FFTBackend = spectral.Backend(o.backend)
	o.analysis.ChromaNorm = chroma.Norm(o.norm)
	o.analysis.Linkage = stats.LinkageCriterion(o.linkage)
	o.analysis.SegmentMetric = stats.DistanceMetric(o.metric)

	analyzer, err := analysis.NewAnalyzer(o.analysis)
	if err != nil {
		return nil, nil, nil, err
	}
	analyzer = analyzer.WithLogger(logger.WithFields(logging.Fields{"component": "analyzer"}))

	decoder := transcode.NewDecoder(&o.decoder)
	if err := decoder.ValidateConfig(); err != nil {
		return nil, nil, nil, err
	}
	decoder = decoder.WithLogger(logger)

	return analyzer, decoder, logger, nil
}

func newLogger(format, level string) (logging.Logger, error) {
	switch format {
	case "text", "":
		return logging.NewWriterLogger(os.Stderr, logging.ParseLevel(level)), nil
	case "json":
		return logging.NewLogrusLogger(os.Stderr, logging.ParseLevel(level)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func runAnalyze(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	opts := bindOptions(fs)
	pretty := fs.Bool("pretty", envBool("PRETTY", false), "indent the JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("analyze takes exactly one file")
	}
	path := fs.Arg(0)

	analyzer, decoder, logger, err := opts.build()
	if err != nil {
		return err
	}

	audio, err := decoder.DecodeFileContext(ctx, path)
	if err != nil {
		return fmt.Errorf("could not decode %s: %w", path, err)
	}
	logger.Debug("Decoded audio", logging.Fields{
		"file":        path,
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"duration":    audio.Duration.String(),
	})

	result, err := analyzer.AnalyzeAudio(audio)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	opts := bindOptions(fs)
	defaults := server.DefaultConfig()
	cfg := server.Config{}
	fs.StringVar(&cfg.Addr, "addr", envStr("ADDR", defaults.Addr), "listen address")
	fs.DurationVar(&cfg.AnalyzeTimeout, "timeout", envDuration("ANALYZE_TIMEOUT", defaults.AnalyzeTimeout), "per-request analysis deadline")
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload", envInt64("MAX_UPLOAD_BYTES", defaults.MaxUploadBytes), "largest accepted upload in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	analyzer, decoder, logger, err := opts.build()
	if err != nil {
		return err
	}
	if err := decoder.CheckFFmpeg(); err != nil {
		logger.Warn("ffmpeg unavailable, only PCM WAV uploads will decode", logging.Fields{"error": err.Error()})
	}

	srv := server.New(cfg, analyzer, decoder).
		WithLogger(logger.WithFields(logging.Fields{"component": "server"}))
	return srv.ListenAndServe(ctx)
}
