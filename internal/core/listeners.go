package core

import (
	"sync"

	"github.com/rs/zerolog"
)

type listener struct {
	client   *Client
	identity Identity
}

// Listeners is the session-independent registry of privileged clients that
// receive a notification for every routed chat message.
type Listeners struct {
	mu         sync.RWMutex
	byIdentity map[string]listener
	log        *zerolog.Logger
}

// NewListeners constructs an empty listener registry.
func NewListeners(logger *zerolog.Logger) *Listeners {
	return &Listeners{byIdentity: make(map[string]listener), log: orNop(logger)}
}

// Register adds client as the listener for identity, evicting any prior
// listener of the same identity. Only privileged roles may listen.
func (l *Listeners) Register(id Identity, client *Client) *CoreError {
	if !RoleOf(id).Privileged() {
		return coreError(ErrCodeForbidden, ErrForbidden.Error())
	}

	key := identityKey(id)
	l.mu.Lock()
	prev, replaced := l.byIdentity[key]
	l.byIdentity[key] = listener{client: client, identity: id}
	l.mu.Unlock()

	if replaced && prev.client != client {
		l.log.Debug().Str("username", id.Name()).Str("client_id", prev.client.ID).Msg("replaced notification listener")
	}
	return nil
}

// RemoveClient drops every listener registration held by client.
func (l *Listeners) RemoveClient(client *Client) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ln := range l.byIdentity {
		if ln.client == client {
			delete(l.byIdentity, key)
		}
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byIdentity)
}

// Notify pushes {session, message} to every privileged listener.
func (l *Listeners) Notify(msg Message) {
	l.mu.RLock()
	targets := make([]*Client, 0, len(l.byIdentity))
	for _, ln := range l.byIdentity {
		if RoleOf(ln.identity).Privileged() {
			targets = append(targets, ln.client)
		}
	}
	l.mu.RUnlock()

	ev := &Event{Kind: EventNotification, Session: msg.SessionID, Message: msg}
	for _, c := range targets {
		if !c.Send(ev) {
			l.log.Debug().Str("client_id", c.ID).Msg("dropping notification for slow or closed listener")
		}
	}
}
