package core

import "github.com/streamlink/chatcore/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin attaches the client to a session under an identity.
	CommandJoin CommandKind = iota
	// CommandLeave detaches the client from its session.
	CommandLeave
	// CommandSendMessage routes a chat message to session participants.
	CommandSendMessage
	// CommandListen registers the client as a cross-session notification listener.
	CommandListen
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Session  string
	Identity Identity // join and listen only

	Content     string
	MessageKind store.MessageKind // requested kind, empty when not given
	RecipientID *int64
}
