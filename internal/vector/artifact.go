package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	indexFileName    = "index.bin"
	metadataFileName = "metadata.json"
)

// SaveArtifact persists the raw vectors and sidecar metadata for an index
// under dir. The binary file holds count*dim little-endian float64 values
// in id order; everything else lives in the JSON sidecar. Reloading the
// artifact reproduces identical query results because construction is
// deterministic.
func SaveArtifact(dir string, vectors [][]float64, meta *Metadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if len(vectors) != meta.Count {
		return fmt.Errorf("save index: %d vectors but metadata count is %d", len(vectors), meta.Count)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	buf := make([]byte, 0, len(vectors)*meta.Dim*8)
	scratch := make([]byte, 8)
	for i, v := range vectors {
		if len(v) != meta.Dim {
			return fmt.Errorf("save index: vector %d has dim %d, want %d", i, len(v), meta.Dim)
		}
		for _, x := range v {
			binary.LittleEndian.PutUint64(scratch, math.Float64bits(x))
			buf = append(buf, scratch...)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, indexFileName), buf, 0o644); err != nil {
		return err
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metadataFileName), metaBytes, 0o644)
}

// LoadMetadata reads just the sidecar metadata of an index artifact.
func LoadMetadata(dir string) (*Metadata, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("load index %s: malformed metadata: %w", dir, err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	return &meta, nil
}

// LoadArtifact reads an index artifact produced by the ETL pipeline (or
// SaveArtifact) and builds a queryable index from it. A malformed or
// dimension-mismatched artifact fails fast with a descriptive error.
func LoadArtifact(dir string, logger *zap.Logger) (*IVFIndex, *Metadata, error) {
	meta, err := LoadMetadata(dir)
	if err != nil {
		return nil, nil, err
	}

	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	want := meta.Count * meta.Dim * 8
	if len(raw) != want {
		return nil, nil, fmt.Errorf(
			"load index %s: vector file holds %d bytes but metadata (count=%d, dim=%d) requires %d",
			dir, len(raw), meta.Count, meta.Dim, want)
	}

	vectors := make([][]float64, meta.Count)
	off := 0
	for i := range vectors {
		v := make([]float64, meta.Dim)
		for d := range v {
			v[d] = math.Float64frombits(binary.LittleEndian.Uint64(raw[off:]))
			off += 8
		}
		vectors[i] = v
	}

	idx := NewIVFIndex(logger)
	err = idx.Build(context.Background(), vectors, BuildParams{
		ClusterCount:    meta.ClusterCount,
		TrainIterations: meta.TrainIterations,
		DefaultProbes:   meta.DefaultProbes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	return idx, meta, nil
}
