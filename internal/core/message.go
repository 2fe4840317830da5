package core

import (
	"strconv"
	"time"

	"github.com/streamlink/chatcore/internal/store"
	"github.com/streamlink/chatcore/internal/utils"
)

// Message is the domain model for a chat message.
type Message struct {
	ID          string
	SessionID   string
	SenderID    *int64 // nil for guests and system notices
	SenderName  string
	SenderRole  Role
	RecipientID *int64
	Kind        store.MessageKind
	Content     string
	CreatedAt   time.Time
	// Ephemeral messages were never written to the store.
	Ephemeral bool
}

func messageFromStore(m *store.Message) Message {
	return Message{
		ID:          strconv.FormatInt(m.ID, 10),
		SessionID:   m.SessionID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderRole:  Role(m.SenderRole),
		RecipientID: m.RecipientID,
		Kind:        m.Kind,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

func ephemeralMessage(session string, sender Identity, c Classification, content string) Message {
	msg := Message{
		ID:          utils.NewEphemeralID(),
		SessionID:   session,
		RecipientID: c.Recipient,
		Kind:        c.Kind,
		Content:     content,
		CreatedAt:   time.Now().UTC(),
		Ephemeral:   true,
	}
	if sender != nil {
		ref := participantRef(sender)
		msg.SenderID = ref.UserID
		msg.SenderName = ref.DisplayName
		msg.SenderRole = RoleOf(sender)
	}
	return msg
}
