package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LinkageCriterion selects how the dissimilarity of two clusters is measured
type LinkageCriterion string

const (
	// CentroidLinkage is the distance between cluster means
	CentroidLinkage LinkageCriterion = "centroid"
	// WardLinkage is the increase in within-cluster variance caused by a merge,
	// sqrt(2*na*nb/(na+nb)) * |ca - cb|
	WardLinkage LinkageCriterion = "ward"
)

// ValidLinkage reports whether l names a supported linkage
func ValidLinkage(l LinkageCriterion) bool {
	return l == CentroidLinkage || l == WardLinkage
}

// ErrClusterCount is returned when the requested number of clusters cannot
// be formed from the data
var ErrClusterCount = errors.New("cluster count out of range")

// Segment is a run of consecutive points forming one cluster
type Segment struct {
	Start  int       `json:"start"` // first point index
	End    int       `json:"end"`   // one past the last point index
	Center []float64 `json:"center"`
}

// Size returns the number of points in the segment
func (s Segment) Size() int {
	return s.End - s.Start
}

// ClusteringResult contains the results of clustering analysis
type ClusteringResult struct {
	Segments    []Segment `json:"segments"`
	Labels      []int     `json:"labels"`     // cluster assignment for each point
	Boundaries  []int     `json:"boundaries"` // start index of every segment but the first
	Inertia     float64   `json:"inertia"`    // total within-cluster sum of squares
	NumClusters int       `json:"num_clusters"`
	Merges      int       `json:"merges"`
}

// ClusteringParams contains parameters for clustering
type ClusteringParams struct {
	NumClusters int              `json:"num_clusters"`
	Linkage     LinkageCriterion `json:"linkage"`
	Distance    DistanceMetric   `json:"distance"`
}

// Clustering performs agglomerative clustering of an ordered sequence under
// a contiguity constraint: only neighbouring clusters may merge, so every
// cluster is an unbroken run of points and the result is an ordered
// partition.
//
// Starting from one cluster per point, the adjacent pair with the smallest
// linkage distance is merged until NumClusters remain. Equal distances merge
// the earliest pair.
type Clustering struct {
	params   ClusteringParams
	distance DistanceFunction
}

// NewClustering creates a clustering analyzer with default parameters
func NewClustering() *Clustering {
	return NewClusteringWithParams(ClusteringParams{
		NumClusters: 4,
		Linkage:     CentroidLinkage,
		Distance:    EuclideanDistance,
	})
}

// NewClusteringWithParams creates a clustering analyzer with custom parameters
func NewClusteringWithParams(params ClusteringParams) *Clustering {
	if params.Linkage == "" {
		params.Linkage = CentroidLinkage
	}
	return &Clustering{
		params:   params,
		distance: GetDistanceFunction(params.Distance),
	}
}

type runCluster struct {
	start, end int
	sum        []float64
}

func (r *runCluster) size() int { return r.end - r.start }

func (r *runCluster) center() []float64 {
	c := make([]float64, len(r.sum))
	floats.ScaleTo(c, 1/float64(r.size()), r.sum)
	return c
}

// Fit clusters the points (one row per point, equal dimensions)
func (c *Clustering) Fit(data [][]float64) (*ClusteringResult, error) {
	n := len(data)
	k := c.params.NumClusters

	if n == 0 {
		return nil, fmt.Errorf("empty data")
	}
	if !ValidLinkage(c.params.Linkage) {
		return nil, fmt.Errorf("unsupported linkage %q", c.params.Linkage)
	}
	if k < 1 || k >= n {
		return nil, fmt.Errorf("%w: %d clusters for %d points", ErrClusterCount, k, n)
	}

	dim := len(data[0])
	clusters := make([]*runCluster, n)
	for i, row := range data {
		if len(row) != dim {
			return nil, fmt.Errorf("point %d has %d dimensions, expected %d", i, len(row), dim)
		}
		sum := make([]float64, dim)
		copy(sum, row)
		clusters[i] = &runCluster{start: i, end: i + 1, sum: sum}
	}

	// gaps[i] is the linkage distance between clusters[i] and clusters[i+1]
	gaps := make([]float64, n-1)
	for i := range gaps {
		gaps[i] = c.linkage(clusters[i], clusters[i+1])
	}

	merges := 0
	for len(clusters) > k {
		best := 0
		for i := 1; i < len(gaps); i++ {
			if gaps[i] < gaps[best] {
				best = i
			}
		}

		left, right := clusters[best], clusters[best+1]
		left.end = right.end
		floats.Add(left.sum, right.sum)

		clusters = append(clusters[:best+1], clusters[best+2:]...)
		gaps = append(gaps[:best], gaps[best+1:]...)

		if best > 0 {
			gaps[best-1] = c.linkage(clusters[best-1], clusters[best])
		}
		if best < len(gaps) {
			gaps[best] = c.linkage(clusters[best], clusters[best+1])
		}
		merges++
	}

	result := &ClusteringResult{
		Segments:    make([]Segment, len(clusters)),
		Labels:      make([]int, n),
		Boundaries:  make([]int, 0, len(clusters)-1),
		NumClusters: len(clusters),
		Merges:      merges,
	}

	for label, cl := range clusters {
		center := cl.center()
		result.Segments[label] = Segment{Start: cl.start, End: cl.end, Center: center}
		if label > 0 {
			result.Boundaries = append(result.Boundaries, cl.start)
		}
		for i := cl.start; i < cl.end; i++ {
			result.Labels[i] = label
			d := floats.Distance(data[i], center, 2)
			result.Inertia += d * d
		}
	}

	return result, nil
}

func (c *Clustering) linkage(a, b *runCluster) float64 {
	d := c.distance(a.center(), b.center())
	if c.params.Linkage == WardLinkage {
		na, nb := float64(a.size()), float64(b.size())
		return math.Sqrt(2*na*nb/(na+nb)) * d
	}
	return d
}
