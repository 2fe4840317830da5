package core

import (
	"context"

	"github.com/streamlink/chatcore/internal/store"
)

// nopStore stands in when the hub runs without persistence. Appends fail so
// every message is delivered as ephemeral.
type nopStore struct{}

var errNoStore = coreError(ErrCodeInternal, "persistence disabled")

func (nopStore) AppendMessage(context.Context, string, store.ParticipantRef, *int64, store.MessageKind, string) (*store.Message, error) {
	return nil, errNoStore
}

func (nopStore) ListRecentMessages(context.Context, string, int) ([]*store.Message, error) {
	return nil, nil
}

func (nopStore) UpsertParticipantOnline(context.Context, string, store.ParticipantRef, bool) error {
	return nil
}

func (nopStore) RemoveParticipantByDisplayName(context.Context, string, string) error { return nil }

func (nopStore) ListParticipants(context.Context, string) ([]*store.Participant, error) {
	return nil, nil
}

func (nopStore) Migrate(context.Context) error { return nil }
func (nopStore) Close() error                  { return nil }
