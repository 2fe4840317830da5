package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventHistory delivers recent messages to a client upon joining a session.
	EventHistory EventKind = iota
	// EventNewMessage delivers a routed chat message.
	EventNewMessage
	// EventParticipants carries the merged roster of a session.
	EventParticipants
	// EventListenerReady confirms a notification listener registration.
	EventListenerReady
	// EventNotification is the cross-session fan-out sent to listeners.
	EventNotification
	// EventError notifies a single client about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventHistory:
		return "history"
	case EventNewMessage:
		return "new_message"
	case EventParticipants:
		return "participants"
	case EventListenerReady:
		return "listener_ready"
	case EventNotification:
		return "notification"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// ParticipantView is one roster entry.
type ParticipantView struct {
	UserID   *int64
	Username string
	Role     Role
	IsOnline bool
	IsGuest  bool
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind         EventKind
	Session      string
	Message      Message
	Messages     []Message         // For EventHistory
	Participants []ParticipantView // For EventParticipants
	Error        *CoreError
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
