package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata(vectors [][]float64) *Metadata {
	domains := make([]string, len(vectors))
	for i := range domains {
		domains[i] = "example.com"
	}
	return &Metadata{
		Domains:         domains,
		Dim:             len(vectors[0]),
		Count:           len(vectors),
		ClusterCount:    8,
		TrainIterations: 6,
		DefaultProbes:   2,
	}
}

func TestArtifactRoundTripIdenticalResults(t *testing.T) {
	dir := t.TempDir()
	vectors := testVectors(120, 6, 11)
	meta := testMetadata(vectors)

	require.NoError(t, SaveArtifact(dir, vectors, meta))

	built := NewIVFIndex(nil)
	require.NoError(t, built.Build(context.Background(), vectors, BuildParams{
		ClusterCount:    meta.ClusterCount,
		TrainIterations: meta.TrainIterations,
		DefaultProbes:   meta.DefaultProbes,
	}))

	loaded, loadedMeta, err := LoadArtifact(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, meta.Count, loadedMeta.Count)
	assert.Equal(t, meta.Dim, loadedMeta.Dim)

	for seed := int64(0); seed < 5; seed++ {
		query := testVectors(1, 6, 100+seed)[0]
		want, err := built.Query(context.Background(), query, 15)
		require.NoError(t, err)
		got, err := loaded.Query(context.Background(), query, 15)
		require.NoError(t, err)
		assert.Equal(t, want, got, "seed %d", seed)
	}
}

func TestLoadArtifactMissingDir(t *testing.T) {
	_, _, err := LoadArtifact(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestLoadArtifactTruncatedVectors(t *testing.T) {
	dir := t.TempDir()
	vectors := testVectors(50, 4, 12)
	require.NoError(t, SaveArtifact(dir, vectors, testMetadata(vectors)))

	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), raw[:len(raw)-8], 0o644))

	_, _, err = LoadArtifact(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires")
}

func TestLoadArtifactMalformedMetadata(t *testing.T) {
	dir := t.TempDir()
	vectors := testVectors(10, 3, 13)
	require.NoError(t, SaveArtifact(dir, vectors, testMetadata(vectors)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName), []byte("{not json"), 0o644))

	_, _, err := LoadArtifact(dir, nil)
	assert.Error(t, err)
}

func TestSaveArtifactCountMismatch(t *testing.T) {
	vectors := testVectors(10, 3, 14)
	meta := testMetadata(vectors)
	meta.Count = 9
	meta.Domains = meta.Domains[:9]
	err := SaveArtifact(t.TempDir(), vectors, meta)
	assert.Error(t, err)
}
