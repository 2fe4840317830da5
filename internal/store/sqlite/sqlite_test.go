package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlink/chatcore/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func userRef(id int64, name, role string) store.ParticipantRef {
	return store.ParticipantRef{UserID: &id, DisplayName: name, Role: role}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestAppendAndListRecentMessages(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := userRef(7, "alice", "user")
	for _, text := range []string{"one", "two", "three"} {
		_, err := s.AppendMessage(ctx, "abc", alice, nil, store.MessageKindBroadcast, text)
		req.NoError(err)
	}
	recipient := int64(1)
	dm, err := s.AppendMessage(ctx, "abc", alice, &recipient, store.MessageKindIndividual, "four")
	req.NoError(err)
	req.NotZero(dm.ID)
	req.False(dm.CreatedAt.IsZero())

	// Other sessions must not leak in.
	_, err = s.AppendMessage(ctx, "other", alice, nil, store.MessageKindBroadcast, "elsewhere")
	req.NoError(err)

	messages, err := s.ListRecentMessages(ctx, "abc", 3)
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("two", messages[0].Content)
	req.Equal("three", messages[1].Content)
	req.Equal("four", messages[2].Content)

	last := messages[2]
	req.Equal(store.MessageKindIndividual, last.Kind)
	req.NotNil(last.RecipientID)
	req.Equal(int64(1), *last.RecipientID)
	req.NotNil(last.SenderID)
	req.Equal(int64(7), *last.SenderID)
	req.Nil(messages[0].RecipientID)
}

func TestListRecentMessagesEmptySession(t *testing.T) {
	s := newTestStore(t)

	messages, err := s.ListRecentMessages(context.Background(), "nobody", 20)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestUpsertParticipantDeduplicatesAccounts(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	req.NoError(s.UpsertParticipantOnline(ctx, "abc", userRef(7, "alice", "user"), true))
	req.NoError(s.UpsertParticipantOnline(ctx, "abc", userRef(7, "alice2", "user"), true))
	req.NoError(s.UpsertParticipantOnline(ctx, "abc", userRef(7, "alice2", "user"), false))

	participants, err := s.ListParticipants(ctx, "abc")
	req.NoError(err)
	req.Len(participants, 1)
	req.Equal("alice2", participants[0].DisplayName)
	req.False(participants[0].IsOnline)
	req.NotNil(participants[0].UserID)
}

func TestUpsertParticipantDeduplicatesGuestsByName(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	guest := store.ParticipantRef{DisplayName: "viewer-42", Role: "user"}
	req.NoError(s.UpsertParticipantOnline(ctx, "abc", guest, true))
	req.NoError(s.UpsertParticipantOnline(ctx, "abc", guest, true))
	// A guest name equal to an account name does not collide with the account row.
	req.NoError(s.UpsertParticipantOnline(ctx, "abc", userRef(9, "viewer-42", "user"), true))

	participants, err := s.ListParticipants(ctx, "abc")
	req.NoError(err)
	req.Len(participants, 2)
	req.Nil(participants[0].UserID)
	req.True(participants[0].IsOnline)
}

func TestRemoveParticipantByDisplayNameOnlyDeletesGuests(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	req.NoError(s.UpsertParticipantOnline(ctx, "abc", store.ParticipantRef{DisplayName: "bob", Role: "user"}, true))
	req.NoError(s.UpsertParticipantOnline(ctx, "abc", userRef(2, "bob", "user"), true))
	req.NoError(s.UpsertParticipantOnline(ctx, "other", store.ParticipantRef{DisplayName: "bob", Role: "user"}, true))

	req.NoError(s.RemoveParticipantByDisplayName(ctx, "abc", "bob"))
	// Removing twice is a no-op.
	req.NoError(s.RemoveParticipantByDisplayName(ctx, "abc", "bob"))

	participants, err := s.ListParticipants(ctx, "abc")
	req.NoError(err)
	req.Len(participants, 1)
	req.NotNil(participants[0].UserID)

	others, err := s.ListParticipants(ctx, "other")
	req.NoError(err)
	req.Len(others, 1)
}
