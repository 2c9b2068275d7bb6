package temporal

import (
	"math"
	"sort"

	"github.com/RyanBlaney/sonido-analyze/algorithms/common"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BeatTracker places beats on an onset envelope with dynamic programming:
// every frame scores its own onset strength plus the best predecessor one
// beat period back, penalized by how far the interval strays from the period.
type BeatTracker struct {
	tightness float64
}

// NewBeatTracker creates a tracker. Larger tightness keeps beats closer to
// the estimated period.
func NewBeatTracker(tightness float64) *BeatTracker {
	return &BeatTracker{tightness: tightness}
}

// Period converts a tempo into a beat period in frames
func Period(bpm float64, hopSize, sampleRate int) int {
	if bpm <= 0 || hopSize <= 0 {
		return 0
	}
	return int(math.Round(60.0 * float64(sampleRate) / (bpm * float64(hopSize))))
}

// Track returns strictly increasing beat frame indices. An empty result
// means the envelope offered nothing to track.
func (bt *BeatTracker) Track(envelope []float64, bpm float64, hopSize, sampleRate int) []int {
	period := Period(bpm, hopSize, sampleRate)
	if period < 1 || len(envelope) == 0 {
		return []int{}
	}

	local := bt.localScore(envelope, period)
	if floats.Max(local) <= 0 {
		return []int{}
	}

	cumscore, backlink := bt.cumulativeScore(local, period)

	last := lastBeat(cumscore)
	if last < 0 {
		return []int{}
	}

	beats := []int{}
	for b := last; b >= 0; b = backlink[b] {
		beats = append(beats, b)
	}
	sort.Ints(beats)

	return trimBeats(beats, local)
}

// localScore normalizes the envelope and smooths it with a Gaussian whose
// width follows the beat period
func (bt *BeatTracker) localScore(envelope []float64, period int) []float64 {
	norm := make([]float64, len(envelope))
	copy(norm, envelope)
	if len(norm) > 1 {
		if sd := stat.StdDev(norm, nil); sd > 0 {
			floats.Scale(1/sd, norm)
		}
	}

	kernel := make([]float64, 2*period+1)
	for i := range kernel {
		x := float64(i-period) * 32.0 / float64(period)
		kernel[i] = math.Exp(-0.5 * x * x)
	}

	score := make([]float64, len(norm))
	for i := range score {
		sum := 0.0
		for k, w := range kernel {
			j := i + k - period
			if j >= 0 && j < len(norm) {
				sum += w * norm[j]
			}
		}
		score[i] = sum
	}
	return score
}

func (bt *BeatTracker) cumulativeScore(local []float64, period int) ([]float64, []int) {
	n := len(local)
	cumscore := make([]float64, n)
	backlink := make([]int, n)

	// Frames before the first real onset cannot start a beat chain
	threshold := 0.01 * floats.Max(local)
	started := false

	minGap := max(period/2, 1)
	maxGap := 2 * period

	for i := range n {
		backlink[i] = -1
		bestScore := math.Inf(-1)
		bestPrev := -1
		bestDev := 0

		for prev := max(i-maxGap, 0); prev <= i-minGap; prev++ {
			ratio := float64(i-prev) / float64(period)
			penalty := bt.tightness * math.Pow(math.Log(ratio), 2)
			s := cumscore[prev] - penalty
			dev := abs(i - prev - period)
			if s > bestScore || (s == bestScore && dev < bestDev) {
				bestScore = s
				bestPrev = prev
				bestDev = dev
			}
		}

		// A chain that would only lose score restarts here instead
		if started && bestPrev >= 0 && bestScore > 0 {
			cumscore[i] = local[i] + bestScore
			backlink[i] = bestPrev
		} else {
			cumscore[i] = local[i]
		}

		if !started && local[i] >= threshold {
			started = true
		}
	}

	return cumscore, backlink
}

// lastBeat picks the final local maximum of the cumulative score that clears
// half the median of all maxima
func lastBeat(cumscore []float64) int {
	var peaks []int
	for i := range cumscore {
		left := i == 0 || cumscore[i] > cumscore[i-1]
		right := i == len(cumscore)-1 || cumscore[i] >= cumscore[i+1]
		if left && right {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) == 0 {
		return -1
	}

	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = cumscore[p]
	}
	threshold := 0.5 * common.Median(values)

	for i := len(peaks) - 1; i >= 0; i-- {
		if cumscore[peaks[i]] > threshold {
			return peaks[i]
		}
	}
	return peaks[len(peaks)-1]
}

// trimBeats drops weak leading and trailing beats whose local score falls
// below half the RMS of the local score at beat positions
func trimBeats(beats []int, local []float64) []int {
	if len(beats) < 3 {
		return beats
	}
	sumSquares := 0.0
	for _, b := range beats {
		sumSquares += local[b] * local[b]
	}
	threshold := 0.5 * math.Sqrt(sumSquares/float64(len(beats)))

	start, end := 0, len(beats)
	for start < end && local[beats[start]] < threshold {
		start++
	}
	for end > start && local[beats[end-1]] < threshold {
		end--
	}
	return beats[start:end]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
