package http

import (
	"strings"

	"github.com/streamlink/chatcore/internal/core"
	"github.com/streamlink/chatcore/internal/proto"
	"github.com/streamlink/chatcore/internal/store"
)

// inboundToCommand maps a validated frame to a hub command.
func inboundToCommand(in proto.Inbound) (*core.Command, *core.CoreError) {
	switch in.Type {
	case proto.InboundTypeJoin:
		id, err := identityFromFrame(in)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandJoin, Session: in.SessionID, Identity: id}, nil
	case proto.InboundTypeLeave:
		return &core.Command{Kind: core.CommandLeave, Session: in.SessionID}, nil
	case proto.InboundTypeMessage:
		return &core.Command{
			Kind:        core.CommandSendMessage,
			Session:     in.SessionID,
			Content:     in.Content,
			MessageKind: store.MessageKind(in.MessageType),
			RecipientID: in.RecipientID,
		}, nil
	case proto.InboundTypeListener:
		id, err := identityFromFrame(in)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandListen, Identity: id}, nil
	default:
		return nil, &core.CoreError{Code: core.ErrCodeMalformedMessage, Message: "unknown message type"}
	}
}

// identityFromFrame trusts the declared identity: a userId makes it an
// account, its absence a guest.
func identityFromFrame(in proto.Inbound) (core.Identity, *core.CoreError) {
	role, ok := core.ParseRole(in.Role)
	if !ok {
		return nil, &core.CoreError{Code: core.ErrCodeMalformedMessage, Message: "invalid role"}
	}
	name := strings.TrimSpace(in.Username)
	if in.UserID != nil {
		return core.Authenticated{AccountID: *in.UserID, Username: name, Role: role}, nil
	}
	return core.Guest{DisplayName: name, Role: role}, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventHistory:
		messages := make([]proto.MessageView, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageView(msg))
		}
		return proto.Outbound{Type: proto.OutboundTypeHistory, SessionID: event.Session, Data: messages}
	case core.EventNewMessage:
		return proto.Outbound{Type: proto.OutboundTypeNewMessage, SessionID: event.Session, Data: messageView(event.Message)}
	case core.EventParticipants:
		return proto.Outbound{Type: proto.OutboundTypeParticipants, SessionID: event.Session, Data: participantViews(event.Participants)}
	case core.EventListenerReady:
		return proto.Outbound{Type: proto.OutboundTypeListenerReady}
	case core.EventNotification:
		return proto.Outbound{
			Type:      proto.OutboundTypeNotification,
			SessionID: event.Session,
			Data:      proto.Notification{SessionID: event.Session, Message: messageView(event.Message)},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.ErrorFrame(core.ErrCodeInternal, "unknown error")
		}
		return proto.ErrorFrame(event.Error.Code, event.Error.Message)
	default:
		return proto.ErrorFrame(core.ErrCodeInternal, "unsupported event")
	}
}

func messageView(m core.Message) proto.MessageView {
	return proto.MessageView{
		ID:          m.ID,
		SessionID:   m.SessionID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderRole:  string(m.SenderRole),
		RecipientID: m.RecipientID,
		MessageType: string(m.Kind),
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
	}
}

func participantViews(in []core.ParticipantView) []proto.ParticipantView {
	out := make([]proto.ParticipantView, 0, len(in))
	for _, p := range in {
		out = append(out, proto.ParticipantView{
			UserID:   p.UserID,
			Username: p.Username,
			Role:     string(p.Role),
			IsOnline: p.IsOnline,
			IsGuest:  p.IsGuest,
		})
	}
	return out
}
