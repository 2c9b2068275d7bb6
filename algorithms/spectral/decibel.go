package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultAmin is the magnitude floor applied before taking logarithms
const DefaultAmin = 1e-10

// AmplitudeToDB converts a magnitude spectrogram to decibels relative to its
// global maximum, so the loudest cell is 0 dB and every cell is <= 0.
// Magnitudes are floored at amin before the logarithm. When topDB > 0 values
// are also clipped to no less than -topDB. A silent spectrogram maps to all
// zeros.
func AmplitudeToDB(magnitude [][]float64, amin, topDB float64) [][]float64 {
	if amin <= 0 {
		amin = DefaultAmin
	}

	ref := 0.0
	for _, row := range magnitude {
		if len(row) > 0 {
			ref = math.Max(ref, floats.Max(row))
		}
	}
	ref = math.Max(ref, amin)
	refDB := 20.0 * math.Log10(ref)

	db := make([][]float64, len(magnitude))
	for t, row := range magnitude {
		db[t] = make([]float64, len(row))
		for f, mag := range row {
			v := 20.0*math.Log10(math.Max(mag, amin)) - refDB
			if topDB > 0 && v < -topDB {
				v = -topDB
			}
			// ref >= mag, rounding can leave a tiny positive residue
			db[t][f] = math.Min(v, 0)
		}
	}

	return db
}
