package core

import (
	"sort"
	"sync"
	"time"
)

// Entry is one live registration: a client attached to a session under an identity.
type Entry struct {
	Key      ClientKey
	Client   *Client
	Identity Identity
	Session  string
	JoinedAt time.Time

	seq uint64

	// A joining entry holds events back until its history has been queued.
	mu      sync.Mutex
	ready   bool
	pending []*Event
}

// Deliver queues ev for the entry's client without blocking. While the entry
// is still joining, ev is held and replayed by Activate. It returns false
// when the event was dropped.
func (e *Entry) Deliver(ev *Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return e.Client.Send(ev)
	}
	if len(e.pending) >= cap(e.Client.Events) {
		return false
	}
	e.pending = append(e.pending, ev)
	return true
}

// Activate queues first, usually the history, followed by the events held
// while joining. Held messages already contained in first are skipped.
// Later calls are no-ops.
func (e *Entry) Activate(first *Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return
	}
	e.ready = true

	seen := make(map[string]struct{})
	if first != nil {
		for _, m := range first.Messages {
			if !m.Ephemeral {
				seen[m.ID] = struct{}{}
			}
		}
		e.Client.Send(first)
	}
	for _, ev := range e.pending {
		if ev.Kind == EventNewMessage {
			if _, dup := seen[ev.Message.ID]; dup {
				continue
			}
		}
		e.Client.Send(ev)
	}
	e.pending = nil
}

// Registry is the single authority for who is currently attached to which session.
// The lock is held only for map updates, never across I/O.
type Registry struct {
	mu       sync.RWMutex
	entries  map[ClientKey]*Entry
	byClient map[*Client]*Entry
	seq      uint64
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[ClientKey]*Entry),
		byClient: make(map[*Client]*Entry),
	}
}

// Register attaches client under key. It never blocks on I/O; the caller must
// close evicted and clean up moved after the call returns.
//
// The new entry is visible at once but joining: deliveries to it are held
// until Activate.
//
// evicted is the prior entry of another client holding the same key.
// moved is this client's own prior entry under a different key, since a
// client belongs to at most one session.
func (r *Registry) Register(key ClientKey, client *Client, id Identity, session string) (entry, evicted, moved *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[key]; ok && prev.Client != client {
		evicted = prev
		delete(r.byClient, prev.Client)
	}
	if prev, ok := r.byClient[client]; ok && prev.Key != key {
		moved = prev
		delete(r.entries, prev.Key)
	}

	r.seq++
	entry = &Entry{
		Key:      key,
		Client:   client,
		Identity: id,
		Session:  session,
		JoinedAt: time.Now(),
		seq:      r.seq,
	}
	r.entries[key] = entry
	r.byClient[client] = entry
	return entry, evicted, moved
}

// Unregister removes the entry owned by client. A second call for the same
// client returns false and has no effect.
func (r *Registry) Unregister(client *Client) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byClient[client]
	if !ok {
		return nil, false
	}
	delete(r.byClient, client)
	if current, exists := r.entries[entry.Key]; exists && current == entry {
		delete(r.entries, entry.Key)
	}
	return entry, true
}

// Lookup returns the entry owned by client.
func (r *Registry) Lookup(client *Client) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.byClient[client]
	return entry, ok
}

// IsLive reports whether key currently has a live entry.
func (r *Registry) IsLive(key ClientKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[key]
	return ok
}

// ListBySession returns the live entries of a session in registration order.
func (r *Registry) ListBySession(session string) []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0)
	for _, entry := range r.entries {
		if entry.Session == session {
			out = append(out, entry)
		}
	}
	r.mu.RUnlock()

	sortEntries(out)
	return out
}

// ListAll returns every live entry in registration order.
func (r *Registry) ListAll() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	r.mu.RUnlock()

	sortEntries(out)
	return out
}

// SessionCounts returns the number of live entries per session.
func (r *Registry) SessionCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, entry := range r.entries {
		counts[entry.Session]++
	}
	return counts
}

func sortEntries(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
}
