package common

import "fmt"

// InterpolationType defines interpolation method
type InterpolationType int

const (
	Linear InterpolationType = iota
	Cubic
)

func (t InterpolationType) String() string {
	switch t {
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	default:
		return fmt.Sprintf("interpolation(%d)", int(t))
	}
}

// ParseInterpolation maps "linear" or "cubic" to its type. The empty name is
// linear.
func ParseInterpolation(name string) (InterpolationType, error) {
	switch name {
	case "linear", "":
		return Linear, nil
	case "cubic":
		return Cubic, nil
	default:
		return Linear, fmt.Errorf("unknown interpolation %q", name)
	}
}

// Interpolator resamples sequences at fractional positions
type Interpolator struct {
	method InterpolationType
}

// NewInterpolator creates a new interpolator
func NewInterpolator(method InterpolationType) *Interpolator {
	return &Interpolator{
		method: method,
	}
}

// Interpolate performs interpolation at fractional index
func (interp *Interpolator) Interpolate(data []float64, index float64) float64 {
	switch interp.method {
	case Cubic:
		return interp.cubicInterpolate(data, index)
	default:
		return interp.linearInterpolate(data, index)
	}
}

func (interp *Interpolator) linearInterpolate(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	frac := index - float64(i)

	return data[i] + frac*(data[i+1]-data[i])
}

// cubicInterpolate uses a Catmull-Rom spline with clamped edge samples
func (interp *Interpolator) cubicInterpolate(data []float64, index float64) float64 {
	if len(data) < 4 {
		return interp.linearInterpolate(data, index)
	}
	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(index)
	t := index - float64(i)

	y0 := data[max(i-1, 0)]
	y1 := data[i]
	y2 := data[i+1]
	y3 := data[min(i+2, len(data)-1)]

	a := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	b := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	c := -0.5*y0 + 0.5*y2

	return ((a*t+b)*t+c)*t + y1
}

// InterpolateArray resamples data to newLength points spread evenly over the
// normalized position range [0, 1]. The first and last points of the result
// equal the first and last points of data.
func (interp *Interpolator) InterpolateArray(data []float64, newLength int) []float64 {
	if len(data) == 0 || newLength <= 0 {
		return []float64{}
	}

	result := make([]float64, newLength)

	if newLength == len(data) {
		copy(result, data)
		return result
	}

	if len(data) == 1 || newLength == 1 {
		for i := range result {
			result[i] = data[0]
		}
		return result
	}

	ratio := float64(len(data)-1) / float64(newLength-1)
	for i := range result {
		result[i] = interp.Interpolate(data, float64(i)*ratio)
	}

	return result
}
