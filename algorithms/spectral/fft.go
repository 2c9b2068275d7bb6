package spectral

import (
	"fmt"
	"math/cmplx"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend names an FFT implementation
type Backend string

const (
	// BackendGoDSP uses mjibson/go-dsp, which handles any length
	BackendGoDSP Backend = "go-dsp"
	// BackendGonum uses gonum's real FFT (FFTPACK port)
	BackendGonum Backend = "gonum"
)

// ValidBackend reports whether b names a supported FFT backend
func ValidBackend(b Backend) bool {
	return b == BackendGoDSP || b == BackendGonum || b == ""
}

// FFT provides Fast Fourier Transform functionality over a selectable backend
type FFT struct {
	backend Backend
}

// NewFFT creates an FFT calculator on the go-dsp backend
func NewFFT() *FFT {
	return &FFT{backend: BackendGoDSP}
}

// NewFFTWithBackend creates an FFT calculator on the named backend
func NewFFTWithBackend(backend Backend) (*FFT, error) {
	if backend == "" {
		backend = BackendGoDSP
	}
	if !ValidBackend(backend) {
		return nil, fmt.Errorf("unknown FFT backend %q", backend)
	}
	return &FFT{backend: backend}, nil
}

// Backend returns the backend in use
func (f *FFT) Backend() Backend {
	return f.backend
}

// MagnitudeTransformer computes the non-negative-frequency magnitude spectrum
// (n/2+1 bins) of length-n frames. Implementations are not safe for
// concurrent use; create one per goroutine.
type MagnitudeTransformer interface {
	Magnitudes(dst, frame []float64) []float64
}

// NewTransformer returns a magnitude transformer for frames of length n
func (f *FFT) NewTransformer(n int) MagnitudeTransformer {
	if f.backend == BackendGonum {
		return &gonumTransformer{n: n, fft: fourier.NewFFT(n)}
	}
	return &dspTransformer{n: n}
}

type dspTransformer struct {
	n int
}

func (t *dspTransformer) Magnitudes(dst, frame []float64) []float64 {
	bins := t.n/2 + 1
	if cap(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]

	coeffs := dspfft.FFTReal(frame)
	for i := range bins {
		dst[i] = cmplx.Abs(coeffs[i])
	}
	return dst
}

type gonumTransformer struct {
	n      int
	fft    *fourier.FFT
	coeffs []complex128
}

func (t *gonumTransformer) Magnitudes(dst, frame []float64) []float64 {
	bins := t.n/2 + 1
	if cap(dst) < bins {
		dst = make([]float64, bins)
	}
	dst = dst[:bins]

	t.coeffs = t.fft.Coefficients(t.coeffs, frame)
	for i := range bins {
		dst[i] = cmplx.Abs(t.coeffs[i])
	}
	return dst
}
