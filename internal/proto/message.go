package proto

import "time"

// Inbound is a client frame. It is flat: which fields are required depends on Type.
type Inbound struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId,omitempty"`
	UserID      *int64 `json:"userId,omitempty"`
	Username    string `json:"username,omitempty"`
	Role        string `json:"role,omitempty"`
	RecipientID *int64 `json:"recipientId,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	Content     string `json:"content,omitempty"`
}

const (
	InboundTypeJoin     = "join"
	InboundTypeLeave    = "leave"
	InboundTypeMessage  = "message"
	InboundTypeListener = "notification_listener"

	OutboundTypeHistory       = "message_history"
	OutboundTypeNewMessage    = "new_message"
	OutboundTypeParticipants  = "participants_list"
	OutboundTypeListenerReady = "notification_listener_ready"
	OutboundTypeNotification  = "notification"
	OutboundTypeError         = "error"
)

// Outbound is a server frame. Data carries the payload of the frame type.
type Outbound struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MessageView is a chat message on the wire.
type MessageView struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	SenderID    *int64    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	SenderRole  string    `json:"senderRole"`
	RecipientID *int64    `json:"recipientId,omitempty"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ParticipantView is a roster entry on the wire.
type ParticipantView struct {
	UserID   *int64 `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsOnline bool   `json:"isOnline"`
	IsGuest  bool   `json:"isGuest"`
}

// Notification is pushed to listeners for every routed message.
type Notification struct {
	SessionID string      `json:"sessionId"`
	Message   MessageView `json:"message"`
}

// ErrorFrame builds an error frame.
func ErrorFrame(code, reason string) Outbound {
	return Outbound{Type: OutboundTypeError, Code: code, Error: reason}
}
