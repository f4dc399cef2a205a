// Package vector provides nearest-neighbor search over embedding vectors.
package vector

import (
	"context"
	"fmt"
)

// Result is one nearest-neighbor hit. IDs are the integer positions the
// vectors were indexed under.
type Result struct {
	ID       int
	Distance float64
}

// BuildParams tunes index construction and default query behavior.
// Higher values improve recall at higher latency cost.
type BuildParams struct {
	// ClusterCount is the number of coarse partitions. Zero picks a
	// value from the data size.
	ClusterCount int

	// TrainIterations controls partition quality during construction.
	TrainIterations int

	// DefaultProbes is the number of partitions examined per query when
	// the caller does not override it.
	DefaultProbes int
}

// Store is a uniform nearest-neighbor query interface over one backend.
// Query results are ordered by ascending distance, contain at most k
// entries, and are deterministic for a fixed index and query vector.
// Network-backed implementations must honor the caller's context on
// both operations; the in-process index may ignore it.
type Store interface {
	// Build constructs the index from a one-time batch of vectors.
	Build(ctx context.Context, vectors [][]float64, params BuildParams) error

	// Query returns the k nearest vectors to the query vector. A query
	// against an empty index returns an empty result, not an error.
	Query(ctx context.Context, vector []float64, k int) ([]Result, error)

	// Dim returns the vector dimensionality, or 0 for an empty index.
	Dim() int

	// Count returns the number of indexed vectors.
	Count() int
}

// Metadata is the sidecar JSON document persisted next to an index
// artifact. Domains[i] names the site that integer id i belongs to.
type Metadata struct {
	Domains []string `json:"domains"`
	Dim     int      `json:"dim"`
	Count   int      `json:"count"`

	// Construction parameters, persisted so a reload rebuilds the exact
	// same partitioning.
	ClusterCount    int `json:"cluster_count,omitempty"`
	TrainIterations int `json:"train_iterations,omitempty"`
	DefaultProbes   int `json:"default_probes,omitempty"`
}

// Validate checks internal consistency of the sidecar document.
func (m *Metadata) Validate() error {
	if m.Dim <= 0 {
		return fmt.Errorf("index metadata: dim must be positive, got %d", m.Dim)
	}
	if m.Count < 0 {
		return fmt.Errorf("index metadata: count must be non-negative, got %d", m.Count)
	}
	if len(m.Domains) != m.Count {
		return fmt.Errorf("index metadata: %d domains for %d vectors", len(m.Domains), m.Count)
	}
	return nil
}
