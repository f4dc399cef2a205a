package model

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// ParticipantType enumerates the kinds of conversation participants.
type ParticipantType string

const (
	ParticipantHuman ParticipantType = "human"
	ParticipantAgent ParticipantType = "agent"
)

// ParticipantInfo describes one conversation participant. Participants are
// equal when their IDs are equal; the remaining fields are descriptive.
type ParticipantInfo struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     ParticipantType `json:"type"`
	JoinedAt time.Time       `json:"joined_at"`
}

// Validate checks that the participant is a complete structured record.
func (p ParticipantInfo) Validate() error {
	if p.ID == "" {
		return errors.New("participant ID is required")
	}
	if p.Type != ParticipantHuman && p.Type != ParticipantAgent {
		return errors.New("participant type must be human or agent")
	}
	if p.JoinedAt.IsZero() {
		return errors.New("participant join time is required")
	}
	return nil
}

// ConversationSession is a multi-participant conversation. The participant
// set only admits constructed ParticipantInfo records; there is no path
// that accepts a collection of bare identifier strings. All mutations are
// serialized by the session's own lock.
type ConversationSession struct {
	mu sync.Mutex

	id           string
	createdAt    time.Time
	participants map[string]ParticipantInfo
	messageCount int
	queueLimit   int
	metadata     map[string]string
}

// DefaultQueueLimit bounds a session's message count when no explicit
// limit is given.
const DefaultQueueLimit = 1000

// NewSession creates a session with the given ID and queue size limit.
// A non-positive limit falls back to DefaultQueueLimit.
func NewSession(id string, queueLimit int) *ConversationSession {
	if queueLimit <= 0 {
		queueLimit = DefaultQueueLimit
	}
	return &ConversationSession{
		id:           id,
		createdAt:    time.Now().UTC(),
		participants: make(map[string]ParticipantInfo),
		queueLimit:   queueLimit,
		metadata:     make(map[string]string),
	}
}

// ID returns the session identifier.
func (s *ConversationSession) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *ConversationSession) CreatedAt() time.Time { return s.createdAt }

// QueueLimit returns the message capacity of the session.
func (s *ConversationSession) QueueLimit() int { return s.queueLimit }

// AddParticipant inserts a participant. Adding an ID that is already
// present is a no-op; the call reports whether the set changed.
func (s *ConversationSession) AddParticipant(p ParticipantInfo) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.participants[p.ID]; exists {
		return false, nil
	}
	s.participants[p.ID] = p
	return true, nil
}

// RemoveParticipant removes the participant with the given ID. Removing
// an absent ID is a no-op.
func (s *ConversationSession) RemoveParticipant(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.participants[id]; !exists {
		return false
	}
	delete(s.participants, id)
	return true
}

// HasParticipant reports whether the given ID is in the participant set.
func (s *ConversationSession) HasParticipant(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.participants[id]
	return ok
}

// Participants returns the participant set ordered by join time, then ID.
func (s *ConversationSession) Participants() []ParticipantInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ParticipantInfo, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MessageCount returns the number of appended messages.
func (s *ConversationSession) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// AppendMessage increments the message count. Once the count would exceed
// the queue size limit it returns a CapacityError and leaves the count
// unchanged.
func (s *ConversationSession) AppendMessage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messageCount+1 > s.queueLimit {
		return &CapacityError{SessionID: s.id, Limit: s.queueLimit}
	}
	s.messageCount++
	return nil
}

// SetMetadata stores a metadata entry on the session.
func (s *ConversationSession) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

// Metadata returns a copy of the session metadata.
func (s *ConversationSession) Metadata() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// sessionJSON is the only (de)serialization shape for a session. The
// participant list is typed: a JSON payload carrying bare identifier
// strings fails to decode instead of silently corrupting the set.
type sessionJSON struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	Participants []ParticipantInfo `json:"participants"`
	MessageCount int               `json:"message_count"`
	QueueLimit   int               `json:"queue_limit"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON serializes the entire session, participant set included, as
// one typed document.
func (s *ConversationSession) MarshalJSON() ([]byte, error) {
	doc := sessionJSON{
		ID:           s.id,
		CreatedAt:    s.createdAt,
		Participants: s.Participants(),
		MessageCount: s.MessageCount(),
		QueueLimit:   s.queueLimit,
		Metadata:     s.Metadata(),
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores a session from its typed document form. Every
// decoded participant is validated before it is admitted to the set.
func (s *ConversationSession) UnmarshalJSON(data []byte) error {
	var doc sessionJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.ID == "" {
		return errors.New("session document missing id")
	}
	participants := make(map[string]ParticipantInfo, len(doc.Participants))
	for _, p := range doc.Participants {
		if err := p.Validate(); err != nil {
			return err
		}
		participants[p.ID] = p
	}
	if doc.QueueLimit <= 0 {
		doc.QueueLimit = DefaultQueueLimit
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = doc.ID
	s.createdAt = doc.CreatedAt
	s.participants = participants
	s.messageCount = doc.MessageCount
	s.queueLimit = doc.QueueLimit
	s.metadata = doc.Metadata
	return nil
}
