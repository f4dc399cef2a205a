package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
	"github.com/sitequery-ai/search-orchestrator/internal/store"
	"github.com/sitequery-ai/search-orchestrator/pkg/logger"
)

func newConversationService(t *testing.T, queueLimit int) (*ConversationService, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewConversationService(st, queueLimit, logger.NewNop()), st
}

func TestCreateSession(t *testing.T) {
	svc, _ := newConversationService(t, 100)

	session, err := svc.Create(context.Background(), "alice", "Alice", "trip planning", nil, false)
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID())
	assert.Equal(t, "trip planning", session.Metadata()["title"])
	participants := session.Participants()
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].ID)
	assert.Equal(t, model.ParticipantHuman, participants[0].Type)
}

func TestCreateSessionWithAI(t *testing.T) {
	svc, _ := newConversationService(t, 100)

	extra := model.ParticipantInfo{ID: "bob", Name: "Bob", Type: model.ParticipantHuman}
	session, err := svc.Create(context.Background(), "alice", "Alice", "", []model.ParticipantInfo{extra}, true)
	require.NoError(t, err)

	ids := map[string]model.ParticipantType{}
	for _, p := range session.Participants() {
		ids[p.ID] = p.Type
	}
	assert.Len(t, ids, 3)
	assert.Equal(t, model.ParticipantAgent, ids[AssistantParticipantID])
	assert.Equal(t, model.ParticipantHuman, ids["bob"])
}

func TestCreateSessionInvalidParticipant(t *testing.T) {
	svc, _ := newConversationService(t, 100)

	bad := model.ParticipantInfo{ID: "bob", Name: "Bob", Type: "alien"}
	_, err := svc.Create(context.Background(), "alice", "Alice", "", []model.ParticipantInfo{bad}, false)
	var cfgErr *model.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestAddParticipantPersists(t *testing.T) {
	svc, st := newConversationService(t, 100)
	ctx := context.Background()

	session, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
	require.NoError(t, err)

	p := model.ParticipantInfo{ID: "bob", Name: "Bob", Type: model.ParticipantHuman}
	require.NoError(t, svc.AddParticipant(ctx, session.ID(), p))
	// Re-adding the same ID is a no-op, not an error.
	require.NoError(t, svc.AddParticipant(ctx, session.ID(), p))

	stored, err := st.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Len(t, stored.Participants(), 2)
}

func TestRemoveParticipantAbsentIsNoop(t *testing.T) {
	svc, _ := newConversationService(t, 100)
	ctx := context.Background()

	session, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
	require.NoError(t, err)

	assert.NoError(t, svc.RemoveParticipant(ctx, session.ID(), "never-joined"))
}

func TestAppendMessagesCapacityLeavesStoreUntouched(t *testing.T) {
	svc, st := newConversationService(t, 3)
	ctx := context.Background()

	session, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
	require.NoError(t, err)

	require.NoError(t, svc.AppendMessages(ctx, session.ID(), 2))

	// The batch would cross the limit; nothing from it may land.
	err = svc.AppendMessages(ctx, session.ID(), 2)
	var capErr *model.CapacityError
	require.ErrorAs(t, err, &capErr)

	stored, err := st.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.MessageCount())
}

func TestAppendMessagesUnknownSession(t *testing.T) {
	svc, _ := newConversationService(t, 100)
	err := svc.AppendMessages(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestConcurrentAppendsSerialize(t *testing.T) {
	svc, st := newConversationService(t, 1000)
	ctx := context.Background()

	session, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.AppendMessages(ctx, session.ID(), 2))
		}()
	}
	wg.Wait()

	stored, err := st.Get(ctx, session.ID())
	require.NoError(t, err)
	assert.Equal(t, 40, stored.MessageCount(), "no appends may be lost to interleaving")
}

func TestListForUser(t *testing.T) {
	svc, _ := newConversationService(t, 100)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "Alice", "one", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "Alice", "two", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", "Bob", "other", nil, false)
	require.NoError(t, err)

	sessions, err := svc.ListForUser(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSessionIDsAreTimeOrdered(t *testing.T) {
	svc, _ := newConversationService(t, 100)
	ctx := context.Background()

	a, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	b, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
	require.NoError(t, err)

	// UUIDv7 identifiers sort by creation time.
	assert.Less(t, a.ID(), b.ID())
}

func TestConcurrentAppendsAcrossManySessions(t *testing.T) {
	svc, st := newConversationService(t, 1000)
	ctx := context.Background()

	// Far more sessions than lock stripes, so distinct sessions share
	// stripes; every append must still land.
	sessions := make([]string, 200)
	for i := range sessions {
		session, err := svc.Create(ctx, "alice", "Alice", "", nil, false)
		require.NoError(t, err)
		sessions[i] = session.ID()
	}

	var wg sync.WaitGroup
	for _, id := range sessions {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.NoError(t, svc.AppendMessages(ctx, id, 1))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range sessions {
		stored, err := st.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 5, stored.MessageCount())
	}
}
