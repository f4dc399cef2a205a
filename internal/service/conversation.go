// Package service provides the business logic of the query orchestrator.
package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/store"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
	"github.com/sitequery-ai/search-orchestrator/pkg/metrics"
)

// AssistantParticipantID identifies the automated agent participant
// added to sessions created with AI enabled.
const AssistantParticipantID = "assistant"

// lockStripes is the number of mutexes session IDs hash onto. Two
// sessions sharing a stripe serialize against each other, which is
// harmless; the point is bounded memory across any number of sessions.
const lockStripes = 64

// ConversationService manages conversation sessions. All mutations of a
// given session are serialized through a striped per-session lock, so
// concurrent appends can never interleave into a lost update.
type ConversationService struct {
	store      store.Store
	queueLimit int
	logger     *logger.Logger

	locks [lockStripes]sync.Mutex
}

// NewConversationService creates a conversation service over a storage
// provider.
func NewConversationService(st store.Store, queueLimit int, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:      st,
		queueLimit: queueLimit,
		logger:     log,
	}
}

func (s *ConversationService) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// Create starts a session on first participant join. The creating user
// is always a participant; enableAI adds the automated agent.
func (s *ConversationService) Create(ctx context.Context, userID, userName, title string, participants []model.ParticipantInfo, enableAI bool) (*model.ConversationSession, error) {
	id := uuid.Must(uuid.NewV7()).String()
	session := model.NewSession(id, s.queueLimit)
	session.SetMetadata(store.MetaUserID, userID)
	if title != "" {
		session.SetMetadata("title", title)
	}

	now := time.Now().UTC()
	if _, err := session.AddParticipant(model.ParticipantInfo{
		ID:       userID,
		Name:     userName,
		Type:     model.ParticipantHuman,
		JoinedAt: now,
	}); err != nil {
		return nil, err
	}
	for _, p := range participants {
		if p.JoinedAt.IsZero() {
			p.JoinedAt = now
		}
		if _, err := session.AddParticipant(p); err != nil {
			return nil, &model.ConfigurationError{
				Field:  "participants",
				Reason: fmt.Sprintf("participant %q: %v", p.ID, err),
			}
		}
	}
	if enableAI {
		if _, err := session.AddParticipant(model.ParticipantInfo{
			ID:       AssistantParticipantID,
			Name:     "Assistant",
			Type:     model.ParticipantAgent,
			JoinedAt: now,
		}); err != nil {
			return nil, err
		}
	}

	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	metrics.SessionsTotal.Inc()
	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("user_id", userID),
		zap.Int("participants", len(session.Participants())))
	return session, nil
}

// Get loads a session.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.ConversationSession, error) {
	return s.store.Get(ctx, id)
}

// ListForUser returns the user's sessions.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]*model.ConversationSession, error) {
	return s.store.ListForUser(ctx, userID)
}

// AddParticipant inserts a participant into an existing session.
// Idempotent on the participant ID.
func (s *ConversationService) AddParticipant(ctx context.Context, sessionID string, p model.ParticipantInfo) error {
	l := s.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	added, err := session.AddParticipant(p)
	if err != nil {
		return err
	}
	if !added {
		return nil
	}
	return s.store.Update(ctx, session)
}

// RemoveParticipant removes a participant from an existing session.
// Removing an absent ID is a no-op.
func (s *ConversationService) RemoveParticipant(ctx context.Context, sessionID, participantID string) error {
	l := s.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.RemoveParticipant(participantID) {
		return nil
	}
	return s.store.Update(ctx, session)
}

// AppendMessages records count message appends on the session. The whole
// batch is admitted or rejected: a capacity error leaves the persisted
// count untouched, and a failed persist leaves the stored snapshot on
// its previous complete state.
func (s *ConversationService) AppendMessages(ctx context.Context, sessionID string, count int) error {
	l := s.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := session.AppendMessage(); err != nil {
			metrics.CapacityRejections.Inc()
			return err
		}
	}
	if err := s.store.Update(ctx, session); err != nil {
		return err
	}
	metrics.MessagesTotal.Add(float64(count))
	return nil
}
