package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"
)

// Type names an analysis window
type Type string

const (
	TypeHann        Type = "hann"
	TypeHamming     Type = "hamming"
	TypeBlackman    Type = "blackman"
	TypeBartlett    Type = "bartlett"
	TypeRectangular Type = "rectangular"
)

// Window is an analysis window of fixed length
type Window interface {
	ApplyInPlace(signal []float64) error
	Coefficients() []float64
	Size() int
	Type() Type
}

// Table is a window backed by a precomputed coefficient table from go-dsp
type Table struct {
	kind         Type
	coefficients []float64
}

// ApplyInPlace multiplies signal by the window coefficients
func (t *Table) ApplyInPlace(signal []float64) error {
	return applyInPlace(signal, t.coefficients)
}

// Coefficients returns a copy of the window coefficients
func (t *Table) Coefficients() []float64 {
	coeffs := make([]float64, len(t.coefficients))
	copy(coeffs, t.coefficients)
	return coeffs
}

func (t *Table) Size() int  { return len(t.coefficients) }
func (t *Table) Type() Type { return t.kind }

// New builds a window of the given type and size. Hann is periodic; the
// other shapes are the symmetric tables provided by go-dsp.
func New(kind Type, size int) (Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	var gen func(int) []float64
	switch kind {
	case TypeHann, "":
		return NewHann(size, false), nil
	case TypeHamming:
		gen = window.Hamming
	case TypeBlackman:
		gen = window.Blackman
	case TypeBartlett:
		gen = window.Bartlett
	case TypeRectangular:
		gen = window.Rectangular
	default:
		return nil, fmt.Errorf("unknown window type %q", kind)
	}

	return &Table{kind: kind, coefficients: gen(size)}, nil
}

// Valid reports whether kind names a supported window
func Valid(kind Type) bool {
	switch kind {
	case TypeHann, TypeHamming, TypeBlackman, TypeBartlett, TypeRectangular:
		return true
	}
	return false
}
