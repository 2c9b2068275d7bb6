package windowing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicHann(t *testing.T) {
	w := NewHann(8, false)
	c := w.Coefficients()

	assert.InDelta(t, 0.0, c[0], 1e-12)
	assert.InDelta(t, 1.0, c[4], 1e-12)
	// periodic form: c[i] == c[n-i]
	for i := 1; i < 8; i++ {
		assert.InDelta(t, c[i], c[8-i], 1e-12)
	}
}

func TestHannOverlapAddIsConstant(t *testing.T) {
	n := 16
	c := NewHann(n, false).Coefficients()
	for i := 0; i < n/2; i++ {
		assert.InDelta(t, 1.0, c[i]+c[i+n/2], 1e-12)
	}
}

func TestNewKinds(t *testing.T) {
	for _, kind := range []Type{TypeHann, TypeHamming, TypeBlackman, TypeBartlett, TypeRectangular} {
		w, err := New(kind, 64)
		require.NoError(t, err, kind)
		assert.Equal(t, 64, w.Size())
		assert.Equal(t, kind, w.Type())
		assert.True(t, Valid(kind))
	}

	rect, err := New(TypeRectangular, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, rect.Coefficients())
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("kaiser-bessel", 64)
	assert.Error(t, err)
	_, err = New(TypeHann, 0)
	assert.Error(t, err)
	assert.False(t, Valid("kaiser-bessel"))
}

func TestApplyInPlaceLengthMismatch(t *testing.T) {
	w := NewHann(4, false)
	assert.Error(t, w.ApplyInPlace(make([]float64, 3)))

	sig := []float64{1, 1, 1, 1}
	require.NoError(t, w.ApplyInPlace(sig))
	assert.InDelta(t, 0.5, sig[1], 1e-12)
	assert.False(t, math.IsNaN(sig[0]))
}
