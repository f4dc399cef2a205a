package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RemoteConfig holds connection details for a remote vector database
// exposing a Qdrant-style REST API.
type RemoteConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// RemoteStore is a minimal REST client to a remote vector database. It
// satisfies the same query contract as the local index: ascending
// distances, at most k results, empty result for an empty collection.
type RemoteStore struct {
	cfg    RemoteConfig
	client *http.Client
	logger *zap.Logger

	mu    sync.RWMutex
	dim   int
	count int
}

// NewRemoteStore creates a remote store client.
func NewRemoteStore(cfg RemoteConfig, logger *zap.Logger) *RemoteStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteStore{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Build creates the remote collection if needed and upserts the batch.
// Construction params are the remote service's concern and are ignored.
func (s *RemoteStore) Build(ctx context.Context, vectors [][]float64, _ BuildParams) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])

	create := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Euclid"},
	}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", s.cfg.Collection), create, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	points := make([]map[string]any, len(vectors))
	for id, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("upsert: vector %d has dim %d, want %d", id, len(v), dim)
		}
		points[id] = map[string]any{"id": id, "vector": v}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", s.cfg.Collection), body, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}

	s.mu.Lock()
	s.dim = dim
	s.count = len(vectors)
	s.mu.Unlock()
	return nil
}

// Query searches the remote collection for the k nearest vectors.
func (s *RemoteStore) Query(ctx context.Context, vector []float64, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}
	req := map[string]any{
		"vector": vector,
		"limit":  k,
	}
	var resp struct {
		Result []struct {
			ID    int     `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", s.cfg.Collection), req, &resp)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(resp.Result))
	for _, r := range resp.Result {
		// With the Euclid metric the remote score is already a distance.
		results = append(results, Result{ID: r.ID, Distance: r.Score})
	}
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Dim returns the last known vector dimensionality.
func (s *RemoteStore) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Count returns the last known vector count.
func (s *RemoteStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body, out any) error {
	if s.cfg.URL == "" {
		return errors.New("remote vector store URL not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.URL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote vector store returned %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
