package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// IVFIndex is an inverted-file index: vectors are partitioned around
// trained centroids and a query examines only the closest partitions.
// The index is read-only after Build and safe for concurrent queries.
type IVFIndex struct {
	mu sync.RWMutex

	dim       int
	vectors   [][]float64
	centroids [][]float64
	lists     [][]int // centroid -> member ids
	probes    int

	logger *zap.Logger
}

// NewIVFIndex creates an empty index. Call Build before querying.
func NewIVFIndex(logger *zap.Logger) *IVFIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IVFIndex{logger: logger}
}

// Build constructs the index from a one-time batch. Construction is
// deterministic: the same vectors and params always produce the same
// partitioning, which is what makes the on-disk round trip exact. The
// context is unused; construction is pure in-process computation.
func (idx *IVFIndex) Build(_ context.Context, vectors [][]float64, params BuildParams) error {
	if len(vectors) == 0 {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		idx.dim = 0
		idx.vectors = nil
		idx.centroids = nil
		idx.lists = nil
		idx.probes = 1
		return nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("build index: zero-dimensional vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("build index: vector %d has dim %d, want %d", i, len(v), dim)
		}
	}

	nlist := params.ClusterCount
	if nlist <= 0 {
		nlist = int(math.Sqrt(float64(len(vectors))))
	}
	if nlist < 1 {
		nlist = 1
	}
	if nlist > len(vectors) {
		nlist = len(vectors)
	}
	iters := params.TrainIterations
	if iters <= 0 {
		iters = 10
	}
	probes := params.DefaultProbes
	if probes <= 0 {
		probes = 1
	}

	centroids := trainCentroids(vectors, nlist, iters)
	lists := make([][]int, len(centroids))
	for id, v := range vectors {
		c := nearestCentroid(v, centroids)
		lists[c] = append(lists[c], id)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dim = dim
	idx.vectors = vectors
	idx.centroids = centroids
	idx.lists = lists
	idx.probes = probes

	idx.logger.Info("vector index built",
		zap.Int("vectors", len(vectors)),
		zap.Int("dim", dim),
		zap.Int("clusters", len(centroids)),
		zap.Int("default_probes", probes))
	return nil
}

// Query returns the k nearest vectors using the configured probe count.
func (idx *IVFIndex) Query(_ context.Context, vector []float64, k int) ([]Result, error) {
	idx.mu.RLock()
	probes := idx.probes
	idx.mu.RUnlock()
	return idx.QueryWithProbes(vector, k, probes)
}

// QueryWithProbes searches the given number of partitions. More probes
// strictly improves recall. Partitions beyond the requested count are
// still examined when fewer than k candidates have been seen, so a query
// with k <= Count always returns exactly k results.
func (idx *IVFIndex) QueryWithProbes(vector []float64, k int, probes int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return []Result{}, nil
	}
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("query vector has dim %d, index has dim %d", len(vector), idx.dim)
	}
	if k <= 0 {
		return []Result{}, nil
	}
	if probes < 1 {
		probes = 1
	}

	// Rank partitions by centroid distance.
	order := make([]Result, len(idx.centroids))
	for c, cent := range idx.centroids {
		order[c] = Result{ID: c, Distance: euclidean(vector, cent)}
	}
	sortResults(order)

	results := make([]Result, 0, k)
	seen := 0
	for pi, part := range order {
		if pi >= probes && seen >= k {
			break
		}
		for _, id := range idx.lists[part.ID] {
			results = append(results, Result{ID: id, Distance: euclidean(vector, idx.vectors[id])})
			seen++
		}
	}

	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Dim returns the vector dimensionality.
func (idx *IVFIndex) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Count returns the number of indexed vectors.
func (idx *IVFIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// trainCentroids runs a fixed number of Lloyd iterations. Initial
// centroids are taken at evenly spaced positions so training never
// depends on a random source.
func trainCentroids(vectors [][]float64, nlist, iters int) [][]float64 {
	dim := len(vectors[0])
	centroids := make([][]float64, nlist)
	for c := range centroids {
		src := vectors[c*len(vectors)/nlist]
		centroids[c] = append([]float64(nil), src...)
	}

	assign := make([]int, len(vectors))
	for it := 0; it < iters; it++ {
		changed := false
		for i, v := range vectors {
			c := nearestCentroid(v, centroids)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		if !changed && it > 0 {
			break
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += x
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // keep the previous centroid for an empty partition
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, cent := range centroids {
		if d := euclidean(v, cent); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// sortResults orders by ascending distance, breaking ties by id so that
// query results are fully deterministic.
func sortResults(rs []Result) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Distance != rs[j].Distance {
			return rs[i].Distance < rs[j].Distance
		}
		return rs[i].ID < rs[j].ID
	})
}
