package spectral

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-analyze/algorithms/framing"
	"github.com/RyanBlaney/sonido-analyze/logging"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft     *FFT
	workers int
	logger  logging.Logger
}

// STFTResult holds the magnitude spectrogram of a signal
type STFTResult struct {
	Magnitude      [][]float64 `json:"magnitude"`       // Time x Frequency magnitude matrix
	TimeFrames     int         `json:"time_frames"`     // Number of time frames
	FreqBins       int         `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int         `json:"sample_rate"`     // Sample rate
	WindowSize     int         `json:"window_size"`     // FFT window size
	HopSize        int         `json:"hop_size"`        // Hop size between frames
	FreqResolution float64     `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64     `json:"time_resolution"` // Time resolution (seconds/frame)
}

// BinFrequency returns the center frequency in Hz of bin i
func (r *STFTResult) BinFrequency(i int) float64 {
	return float64(i) * r.FreqResolution
}

// NewSTFT creates a new STFT calculator. workers <= 0 sizes the pool from the
// frame count and runtime.NumCPU.
func NewSTFT(fft *FFT, workers int) *STFT {
	if fft == nil {
		fft = NewFFT()
	}
	return &STFT{
		fft:     fft,
		workers: workers,
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
			"backend":   fft.Backend(),
		}),
	}
}

// WithLogger returns a copy of the STFT that logs to logger
func (s *STFT) WithLogger(logger logging.Logger) *STFT {
	clone := *s
	clone.logger = logger.WithFields(logging.Fields{
		"component": "stft",
		"backend":   s.fft.Backend(),
	})
	return &clone
}

// Compute computes the magnitude spectrogram of signal using the framer's
// window and hop. Frames are transformed in parallel; each worker owns its
// frame buffer and transformer and writes only its own rows.
func (s *STFT) Compute(signal []float64, framer *framing.Framer, sampleRate int) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if framer == nil {
		return nil, fmt.Errorf("nil framer")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	windowSize := framer.WindowSize()
	hopSize := framer.HopSize()
	numFrames := framer.Count(len(signal))
	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
	}

	numWorkers := s.workerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			frameBuffer := make([]float64, windowSize)
			transformer := s.fft.NewTransformer(windowSize)

			for frameIdx := range jobs {
				frameBuffer = framer.Frame(signal, frameIdx, frameBuffer)
				magnitude[frameIdx] = transformer.Magnitudes(magnitude[frameIdx], frameBuffer)
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameIdx
	}
	close(jobs)
	wg.Wait()

	s.logger.Debug("STFT computed", logging.Fields{
		"frames":    numFrames,
		"freq_bins": freqBins,
		"workers":   numWorkers,
	})

	return &STFTResult{
		Magnitude:      magnitude,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// workerCount determines the number of workers based on workload
func (s *STFT) workerCount(numFrames int) int {
	if s.workers > 0 {
		return max(1, min(s.workers, numFrames))
	}

	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
