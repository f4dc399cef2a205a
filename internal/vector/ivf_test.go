package vector

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVectors(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float64, n)
	for i := range vectors {
		v := make([]float64, dim)
		for d := range v {
			v[d] = rng.Float64()
		}
		vectors[i] = v
	}
	return vectors
}

func TestIVFIndexExactlyK(t *testing.T) {
	vectors := testVectors(200, 8, 1)
	idx := NewIVFIndex(nil)
	require.NoError(t, idx.Build(context.Background(), vectors, BuildParams{ClusterCount: 16}))

	query := vectors[42]
	for _, k := range []int{1, 5, 50, 200} {
		results, err := idx.QueryWithProbes(query, k, 1)
		require.NoError(t, err)
		assert.Len(t, results, k, "k=%d", k)
	}
}

func TestIVFIndexKLargerThanCount(t *testing.T) {
	vectors := testVectors(10, 4, 2)
	idx := NewIVFIndex(nil)
	require.NoError(t, idx.Build(context.Background(), vectors, BuildParams{}))

	results, err := idx.Query(context.Background(), vectors[0], 25)
	require.NoError(t, err)
	assert.Len(t, results, 10)
}

func TestIVFIndexNearestFirst(t *testing.T) {
	vectors := testVectors(100, 6, 3)
	idx := NewIVFIndex(nil)
	require.NoError(t, idx.Build(context.Background(), vectors, BuildParams{ClusterCount: 10, DefaultProbes: 10}))

	results, err := idx.Query(context.Background(), vectors[7], 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 7, results[0].ID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-12)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}
}

func TestIVFIndexMoreProbesImproveRecall(t *testing.T) {
	vectors := testVectors(500, 8, 4)
	idx := NewIVFIndex(nil)
	require.NoError(t, idx.Build(context.Background(), vectors, BuildParams{ClusterCount: 25}))

	// Exhaustive probing is exact search, the recall reference.
	query := testVectors(1, 8, 99)[0]
	exact, err := idx.QueryWithProbes(query, 20, 25)
	require.NoError(t, err)
	exactIDs := make(map[int]bool, len(exact))
	for _, r := range exact {
		exactIDs[r.ID] = true
	}

	recallAt := func(probes int) int {
		results, err := idx.QueryWithProbes(query, 20, probes)
		require.NoError(t, err)
		hits := 0
		for _, r := range results {
			if exactIDs[r.ID] {
				hits++
			}
		}
		return hits
	}

	prev := -1
	for _, probes := range []int{1, 2, 5, 10, 25} {
		hits := recallAt(probes)
		assert.GreaterOrEqual(t, hits, prev, "probes=%d", probes)
		prev = hits
	}
	assert.Equal(t, 20, recallAt(25))
}

func TestIVFIndexDeterministicBuild(t *testing.T) {
	vectors := testVectors(150, 5, 5)
	params := BuildParams{ClusterCount: 12, TrainIterations: 8, DefaultProbes: 3}

	a := NewIVFIndex(nil)
	require.NoError(t, a.Build(context.Background(), vectors, params))
	b := NewIVFIndex(nil)
	require.NoError(t, b.Build(context.Background(), vectors, params))

	query := testVectors(1, 5, 77)[0]
	ra, err := a.Query(context.Background(), query, 10)
	require.NoError(t, err)
	rb, err := b.Query(context.Background(), query, 10)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
}

func TestIVFIndexEmpty(t *testing.T) {
	idx := NewIVFIndex(nil)
	require.NoError(t, idx.Build(context.Background(), nil, BuildParams{}))

	results, err := idx.Query(context.Background(), []float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, idx.Count())
}

func TestIVFIndexDimensionMismatch(t *testing.T) {
	vectors := testVectors(20, 4, 6)
	idx := NewIVFIndex(nil)
	require.NoError(t, idx.Build(context.Background(), vectors, BuildParams{}))

	_, err := idx.Query(context.Background(), []float64{1, 2, 3}, 5)
	assert.Error(t, err)
}

func TestIVFIndexRaggedVectorsRejected(t *testing.T) {
	idx := NewIVFIndex(nil)
	err := idx.Build(context.Background(), [][]float64{{1, 2}, {1, 2, 3}}, BuildParams{})
	assert.Error(t, err)
}
