// Package framing splits a signal into overlapping fixed-size analysis frames.
package framing

import (
	"fmt"
	"iter"

	"github.com/RyanBlaney/sonido-analyze/algorithms/windowing"
)

// Framer produces frames of WindowSize samples spaced HopSize samples apart.
// It holds no per-signal state, so one Framer may be shared by concurrent callers.
type Framer struct {
	windowSize int
	hopSize    int
	window     windowing.Window
}

// NewFramer creates a framer. A nil window yields unwindowed (rectangular) frames.
func NewFramer(windowSize, hopSize int, window windowing.Window) (*Framer, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", hopSize)
	}
	if window != nil && window.Size() != windowSize {
		return nil, fmt.Errorf("window length (%d) doesn't match window size (%d)", window.Size(), windowSize)
	}

	return &Framer{
		windowSize: windowSize,
		hopSize:    hopSize,
		window:     window,
	}, nil
}

func (f *Framer) WindowSize() int { return f.windowSize }
func (f *Framer) HopSize() int    { return f.hopSize }

// Count returns the number of frames for a signal of n samples:
// 1 + (n - windowSize) / hopSize, or a single padded frame when n < windowSize.
func (f *Framer) Count(n int) int {
	if n <= 0 {
		return 0
	}
	if n < f.windowSize {
		return 1
	}
	return 1 + (n-f.windowSize)/f.hopSize
}

// Raw copies frame i of signal into dst without windowing, zero-padding past
// the end of the signal. dst is reallocated when it is too small.
func (f *Framer) Raw(signal []float64, i int, dst []float64) []float64 {
	if cap(dst) < f.windowSize {
		dst = make([]float64, f.windowSize)
	}
	dst = dst[:f.windowSize]

	start := i * f.hopSize
	n := 0
	if start < len(signal) {
		n = copy(dst, signal[start:])
	}
	clear(dst[n:])
	return dst
}

// Frame is Raw followed by the analysis window.
func (f *Framer) Frame(signal []float64, i int, dst []float64) []float64 {
	dst = f.Raw(signal, i, dst)
	if f.window != nil {
		// lengths are checked in NewFramer
		_ = f.window.ApplyInPlace(dst)
	}
	return dst
}

// Frames returns a restartable sequence of windowed frames. The yielded slice is
// reused between iterations; copy it to retain it.
func (f *Framer) Frames(signal []float64) iter.Seq2[int, []float64] {
	return f.seq(signal, f.Frame)
}

// RawFrames is Frames without the analysis window.
func (f *Framer) RawFrames(signal []float64) iter.Seq2[int, []float64] {
	return f.seq(signal, f.Raw)
}

func (f *Framer) seq(signal []float64, get func([]float64, int, []float64) []float64) iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		buf := make([]float64, f.windowSize)
		count := f.Count(len(signal))
		for i := range count {
			buf = get(signal, i, buf)
			if !yield(i, buf) {
				return
			}
		}
	}
}

// FrameToSeconds converts a frame index to its start time in seconds
func FrameToSeconds(frame, hopSize, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frame) * float64(hopSize) / float64(sampleRate)
}
