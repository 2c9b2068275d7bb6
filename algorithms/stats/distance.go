package stats

import (
	"gonum.org/v1/gonum/floats"
)

// DistanceMetric represents different distance/similarity measures
type DistanceMetric string

const (
	EuclideanDistance DistanceMetric = "euclidean"
	ManhattanDistance DistanceMetric = "manhattan"
	CosineDistance    DistanceMetric = "cosine"
)

// ValidDistanceMetric reports whether m names a supported metric. The empty
// name selects euclidean.
func ValidDistanceMetric(m DistanceMetric) bool {
	switch m {
	case "", EuclideanDistance, ManhattanDistance, CosineDistance:
		return true
	}
	return false
}

// DistanceFunction is a function type for computing distance between two vectors
type DistanceFunction func(a, b []float64) float64

// GetDistanceFunction returns the appropriate distance function for the given metric
func GetDistanceFunction(metric DistanceMetric) DistanceFunction {
	switch metric {
	case ManhattanDistance:
		return ManhattanDistanceFunc
	case CosineDistance:
		return CosineDistanceFunc
	default:
		return EuclideanDistanceFunc
	}
}

// EuclideanDistanceFunc calculates Euclidean distance between two points
func EuclideanDistanceFunc(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// ManhattanDistanceFunc calculates Manhattan (L1) distance between two points
func ManhattanDistanceFunc(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// CosineDistanceFunc calculates cosine distance (1 - cosine similarity).
// A zero vector is at distance 1 from everything except another zero vector.
func CosineDistanceFunc(a, b []float64) float64 {
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)

	if normA == 0 && normB == 0 {
		return 0.0
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - floats.Dot(a, b)/(normA*normB)
}
