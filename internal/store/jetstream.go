package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	natsclient "github.com/sitequery-ai/search-orchestrator/internal/nats"
)

const (
	// StreamName is the name of the sessions stream.
	StreamName = "SESSIONS"

	// SubjectPrefix is the prefix for all session subjects.
	SubjectPrefix = "sessions"
)

// JetStreamStore persists session snapshots in a NATS JetStream stream.
// Each session lives on its own subject and the stream keeps only the
// latest snapshot per subject, so every read sees one complete typed
// document.
type JetStreamStore struct {
	client *natsclient.Client
}

// NewJetStreamStore creates a JetStream-backed store.
func NewJetStreamStore(client *natsclient.Client) *JetStreamStore {
	return &JetStreamStore{client: client}
}

// EnsureStream ensures the sessions stream exists with proper
// configuration.
func (s *JetStreamStore) EnsureStream(ctx context.Context) error {
	js := s.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil // Stream already exists
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:              StreamName,
		Subjects:          []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:         jetstream.LimitsPolicy,
		MaxMsgsPerSubject: 1, // only the latest snapshot per session
		Storage:           jetstream.FileStorage,
		Replicas:          1,
		Compression:       jetstream.S2Compression,
		Description:       "Latest snapshot of every conversation session",
	})
	if err != nil {
		return &model.StorageError{Op: "ensure-stream", Err: err}
	}
	return nil
}

// SessionSubject returns the subject a session's snapshots live on.
func SessionSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, sessionID)
}

// Create publishes the first snapshot of a session.
func (s *JetStreamStore) Create(ctx context.Context, session *model.ConversationSession) error {
	if _, err := s.Get(ctx, session.ID()); err == nil {
		return model.ErrDuplicateSession
	} else if !errors.Is(err, model.ErrSessionNotFound) {
		return err
	}
	return s.publish(ctx, session, "create")
}

// Get loads the latest snapshot of a session.
func (s *JetStreamStore) Get(ctx context.Context, id string) (*model.ConversationSession, error) {
	stream, err := s.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	raw, err := stream.GetLastMsgForSubject(ctx, SessionSubject(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, model.ErrSessionNotFound
		}
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	var session model.ConversationSession
	if err := json.Unmarshal(raw.Data, &session); err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	return &session, nil
}

// Update publishes a fresh snapshot, superseding the previous one.
func (s *JetStreamStore) Update(ctx context.Context, session *model.ConversationSession) error {
	if _, err := s.Get(ctx, session.ID()); err != nil {
		return err
	}
	return s.publish(ctx, session, "update")
}

// ListForUser scans the stream and returns the sessions whose metadata
// names the given user.
func (s *JetStreamStore) ListForUser(ctx context.Context, userID string) ([]*model.ConversationSession, error) {
	js := s.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: fmt.Sprintf("%s.>", SubjectPrefix),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}

	var out []*model.ConversationSession
	for {
		batch, err := consumer.Fetch(100, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return nil, &model.StorageError{Op: "list", Err: err}
		}
		n := 0
		for msg := range batch.Messages() {
			n++
			var session model.ConversationSession
			if err := json.Unmarshal(msg.Data(), &session); err != nil {
				continue
			}
			if session.Metadata()[MetaUserID] == userID {
				out = append(out, &session)
			}
		}
		if batch.Error() != nil || n == 0 {
			break
		}
	}
	return out, nil
}

func (s *JetStreamStore) publish(ctx context.Context, session *model.ConversationSession, op string) error {
	data, err := json.Marshal(session)
	if err != nil {
		return &model.StorageError{Op: op, Err: err}
	}
	if _, err := s.client.JetStream().Publish(ctx, SessionSubject(session.ID()), data); err != nil {
		return &model.StorageError{Op: op, Err: err}
	}
	return nil
}
