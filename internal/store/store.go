// Package store persists conversation sessions behind a pluggable
// storage provider.
package store

import (
	"context"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

// MetaUserID is the session metadata key associating a session with the
// user who created it.
const MetaUserID = "user_id"

// Store is the conversation persistence contract. Every provider
// persists the entire typed participant set on each mutation; sessions
// only travel through their typed serialization, so a stored document
// can never hold bare identifier strings in place of participants.
type Store interface {
	// Create persists a new session. Returns model.ErrDuplicateSession
	// when the ID already exists.
	Create(ctx context.Context, s *model.ConversationSession) error

	// Get loads a session by ID. Returns model.ErrSessionNotFound when
	// the ID is unknown.
	Get(ctx context.Context, id string) (*model.ConversationSession, error)

	// Update persists the current state of an existing session.
	Update(ctx context.Context, s *model.ConversationSession) error

	// ListForUser returns the sessions created by the given user.
	ListForUser(ctx context.Context, userID string) ([]*model.ConversationSession, error)
}
