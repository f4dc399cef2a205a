package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// FileStore persists each session as one JSON document under a
// directory. Writes go through a temp file and rename, so a crashed or
// failed write never leaves a torn document behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.StorageError{Op: "init", Err: err}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Create persists a new session document.
func (s *FileStore) Create(_ context.Context, session *model.ConversationSession) error {
	path, err := s.path(session.ID())
	if err != nil {
		return &model.StorageError{Op: "create", Err: err}
	}
	if _, err := os.Stat(path); err == nil {
		return model.ErrDuplicateSession
	}
	return s.write(path, session, "create")
}

// Get loads a session by ID.
func (s *FileStore) Get(_ context.Context, id string) (*model.ConversationSession, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	var session model.ConversationSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	return &session, nil
}

// Update rewrites an existing session document.
func (s *FileStore) Update(_ context.Context, session *model.ConversationSession) error {
	path, err := s.path(session.ID())
	if err != nil {
		return &model.StorageError{Op: "update", Err: err}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return model.ErrSessionNotFound
	}
	return s.write(path, session, "update")
}

// ListForUser scans the directory for sessions owned by the user.
func (s *FileStore) ListForUser(_ context.Context, userID string) ([]*model.ConversationSession, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	var out []*model.ConversationSession
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, &model.StorageError{Op: "list", Err: err}
		}
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

func (s *FileStore) write(path string, session *model.ConversationSession, op string) error {
	data, err := json.Marshal(session)
	if err != nil {
		return &model.StorageError{Op: op, Err: err}
	}
	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return &model.StorageError{Op: op, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &model.StorageError{Op: op, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &model.StorageError{Op: op, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &model.StorageError{Op: op, Err: err}
	}
	return nil
}
