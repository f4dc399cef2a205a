package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// MemoryStore keeps session snapshots in process memory. Snapshots are
// serialized documents, so readers always get an independent copy and a
// half-applied mutation can never leak out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Create persists a new session snapshot.
func (s *MemoryStore) Create(_ context.Context, session *model.ConversationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return &model.StorageError{Op: "create", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID()]; exists {
		return model.ErrDuplicateSession
	}
	s.sessions[session.ID()] = data
	return nil
}

// Get loads a session by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.ConversationSession, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	var session model.ConversationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	return &session, nil
}

// Update replaces the snapshot of an existing session.
func (s *MemoryStore) Update(_ context.Context, session *model.ConversationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return &model.StorageError{Op: "update", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID()]; !exists {
		return model.ErrSessionNotFound
	}
	s.sessions[session.ID()] = data
	return nil
}

// ListForUser returns sessions whose metadata names the given user.
func (s *MemoryStore) ListForUser(_ context.Context, userID string) ([]*model.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ConversationSession
	for _, data := range s.sessions {
		var session model.ConversationSession
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, &model.StorageError{Op: "list", Err: err}
		}
		if session.Metadata()[MetaUserID] == userID {
			out = append(out, &session)
		}
	}
	return out, nil
}
