package store

import (
	"context"
	"time"
)

// MessageKind is the persisted classification of a chat message.
type MessageKind string

const (
	MessageKindIndividual MessageKind = "individual"
	MessageKindBroadcast  MessageKind = "broadcast"
	MessageKindSystem     MessageKind = "system"
)

// ParticipantRef identifies a participant inside a session.
// UserID is nil for guests; guests are keyed by DisplayName instead.
type ParticipantRef struct {
	UserID      *int64
	DisplayName string
	Role        string
}

// IsGuest reports whether the reference has no backing account.
func (r ParticipantRef) IsGuest() bool {
	return r.UserID == nil
}

// Message represents a persisted chat message.
type Message struct {
	ID          int64
	SessionID   string
	SenderID    *int64
	SenderName  string
	SenderRole  string
	RecipientID *int64 // set only for individual messages
	Kind        MessageKind
	Content     string
	CreatedAt   time.Time
}

// Participant is the durable per-session presence row.
type Participant struct {
	ID          int64
	SessionID   string
	UserID      *int64
	DisplayName string
	Role        string
	IsOnline    bool
	JoinedAt    time.Time
	LastSeenAt  time.Time
}

// MessageStore handles chat message persistence.
type MessageStore interface {
	// AppendMessage persists a message and returns it with ID and CreatedAt set.
	AppendMessage(ctx context.Context, sessionID string, sender ParticipantRef, recipientID *int64, kind MessageKind, content string) (*Message, error)

	// ListRecentMessages returns up to limit newest messages of a session, oldest first.
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]*Message, error)
}

// ParticipantStore handles chat participant persistence.
type ParticipantStore interface {
	// UpsertParticipantOnline creates or updates the row for ref in the session.
	// Authenticated rows are keyed by user id, guest rows by display name.
	UpsertParticipantOnline(ctx context.Context, sessionID string, ref ParticipantRef, online bool) error

	// RemoveParticipantByDisplayName deletes the guest row with the given name.
	RemoveParticipantByDisplayName(ctx context.Context, sessionID, name string) error

	// ListParticipants lists all rows of a session ordered by join time.
	ListParticipants(ctx context.Context, sessionID string) ([]*Participant, error)
}

// ChatStore aggregates the persistence gateway consumed by the chat core.
type ChatStore interface {
	MessageStore
	ParticipantStore

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
