package core

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/streamlink/chatcore/internal/store"
)

// SendRequest is an inbound chat message as requested by its sender.
type SendRequest struct {
	SessionID   string
	Content     string
	Kind        store.MessageKind
	RecipientID *int64
}

// Router classifies inbound chat messages, persists them and delivers them.
type Router struct {
	registry  *Registry
	store     store.MessageStore
	listeners *Listeners
	log       *zerolog.Logger
}

// NewRouter builds a router over the registry and message store.
func NewRouter(registry *Registry, st store.MessageStore, listeners *Listeners, logger *zerolog.Logger) *Router {
	return &Router{registry: registry, store: st, listeners: listeners, log: orNop(logger)}
}

// Route delivers a message from sender. Errors are meant for the sender only.
func (r *Router) Route(ctx context.Context, sender *Client, req SendRequest) (Message, *CoreError) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return Message{}, coreError(ErrCodeBadRequest, "content is required")
	}
	if req.SessionID == "" {
		return Message{}, coreError(ErrCodeBadRequest, "sessionId is required")
	}

	entry, ok := r.registry.Lookup(sender)
	if !ok {
		return Message{}, coreError(ErrCodeUnknownSender, ErrUnknownSender.Error())
	}
	if entry.Session != req.SessionID {
		return Message{}, coreError(ErrCodeNotInSession, ErrNotInSession.Error())
	}

	cls, err := ClassifyMessageKind(entry.Identity, req.Kind, req.RecipientID)
	if err != nil {
		if errors.Is(err, ErrUnsupportedKind) {
			return Message{}, coreError(ErrCodeUnsupportedKind, err.Error())
		}
		return Message{}, coreError(ErrCodeUnknownSender, err.Error())
	}

	msg := r.persist(ctx, entry, cls, content)

	targets, fallback := r.Recipients(entry.Session, cls)
	if fallback {
		r.log.Debug().
			Str("session_id", entry.Session).
			Str("client_id", sender.ID).
			Msg("individual message without matching recipient, delivering session-wide")
	}
	r.deliver(targets, &Event{Kind: EventNewMessage, Session: entry.Session, Message: msg})

	if r.listeners != nil {
		r.listeners.Notify(msg)
	}
	return msg, nil
}

// Notice broadcasts a server-generated system message to a session.
func (r *Router) Notice(session, content string) Message {
	msg := ephemeralMessage(session, nil, Classification{Kind: store.MessageKindSystem}, content)
	targets, _ := r.Recipients(session, Classification{Kind: store.MessageKindSystem})
	r.deliver(targets, &Event{Kind: EventNewMessage, Session: session, Message: msg})
	return msg
}

// Recipients resolves the live entries that receive a message of class c.
// Individual messages with no recipient, or with no live matching connection,
// fall back to the whole session; fallback reports when that happened.
func (r *Router) Recipients(session string, c Classification) (targets []*Entry, fallback bool) {
	all := r.registry.ListBySession(session)
	if c.Kind != store.MessageKindIndividual {
		return all, false
	}
	if c.Recipient == nil {
		return all, true
	}

	matched := lo.Filter(all, func(e *Entry, _ int) bool {
		id, ok := AccountID(e.Identity)
		return ok && id == *c.Recipient
	})
	if len(matched) == 0 {
		return all, true
	}
	return matched, false
}

// persist appends messages of authenticated senders. Guests, and senders whose
// write failed, get an ephemeral message so delivery still happens.
func (r *Router) persist(ctx context.Context, entry *Entry, cls Classification, content string) Message {
	if _, ok := entry.Identity.(Authenticated); !ok {
		return ephemeralMessage(entry.Session, entry.Identity, cls, content)
	}

	saved, err := r.store.AppendMessage(ctx, entry.Session, participantRef(entry.Identity), cls.Recipient, cls.Kind, content)
	if err != nil {
		r.log.Warn().Err(err).
			Str("session_id", entry.Session).
			Str("username", entry.Identity.Name()).
			Msg("persist message failed, broadcasting ephemeral copy")
		return ephemeralMessage(entry.Session, entry.Identity, cls, content)
	}
	return messageFromStore(saved)
}

func (r *Router) deliver(targets []*Entry, ev *Event) {
	for _, t := range targets {
		if !t.Deliver(ev) {
			r.log.Debug().Str("client_id", t.Client.ID).Str("session_id", ev.Session).Msg("dropping event for slow or closed client")
		}
	}
}
