package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitequery-ai/search-orchestrator/internal/model"
)

func newTestSession(t *testing.T, id, userID string) *model.ConversationSession {
	t.Helper()
	s := model.NewSession(id, 100)
	s.SetMetadata(MetaUserID, userID)
	_, err := s.AddParticipant(model.ParticipantInfo{
		ID:       userID,
		Name:     "User " + userID,
		Type:     model.ParticipantHuman,
		JoinedAt: time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)
	return s
}

// runStoreContract exercises the behavior every provider must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		st := newStore(t)
		s := newTestSession(t, "s1", "alice")
		require.NoError(t, st.Create(ctx, s))

		got, err := st.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, s.ID(), got.ID())
		assert.Equal(t, s.Participants(), got.Participants())
		assert.Equal(t, "alice", got.Metadata()[MetaUserID])
	})

	t.Run("duplicate create", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Create(ctx, newTestSession(t, "s1", "alice")))
		err := st.Create(ctx, newTestSession(t, "s1", "bob"))
		assert.ErrorIs(t, err, model.ErrDuplicateSession)
	})

	t.Run("get unknown", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Get(ctx, "missing")
		assert.ErrorIs(t, err, model.ErrSessionNotFound)
	})

	t.Run("update persists whole participant set", func(t *testing.T) {
		st := newStore(t)
		s := newTestSession(t, "s1", "alice")
		require.NoError(t, st.Create(ctx, s))

		_, err := s.AddParticipant(model.ParticipantInfo{
			ID:       "bob",
			Name:     "Bob",
			Type:     model.ParticipantHuman,
			JoinedAt: time.Now().UTC().Truncate(time.Second),
		})
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage())
		require.NoError(t, st.Update(ctx, s))

		got, err := st.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, got.Participants(), 2)
		assert.Equal(t, 1, got.MessageCount())
	})

	t.Run("update unknown", func(t *testing.T) {
		st := newStore(t)
		err := st.Update(ctx, newTestSession(t, "ghost", "alice"))
		assert.ErrorIs(t, err, model.ErrSessionNotFound)
	})

	t.Run("list filters by user", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Create(ctx, newTestSession(t, "a1", "alice")))
		require.NoError(t, st.Create(ctx, newTestSession(t, "a2", "alice")))
		require.NoError(t, st.Create(ctx, newTestSession(t, "b1", "bob")))

		got, err := st.ListForUser(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = st.ListForUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("stored snapshot is independent of live session", func(t *testing.T) {
		st := newStore(t)
		s := newTestSession(t, "s1", "alice")
		require.NoError(t, st.Create(ctx, s))

		// Mutating the live session without Update must not change the
		// persisted state.
		require.NoError(t, s.AppendMessage())

		got, err := st.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 0, got.MessageCount())
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		st, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return st
	})
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", `a\b`} {
		err := st.Create(context.Background(), model.NewSession(id, 10))
		assert.Error(t, err, "id %q", id)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, st.Create(ctx, newTestSession(t, "s1", "alice")))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := reopened.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID())
}
