package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streamlink/chatcore/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustRoster drains participant events until one satisfies ok.
func mustRoster(t *testing.T, ch <-chan *Event, ok func([]ParticipantView) bool) []ParticipantView {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var last []ParticipantView
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil || ev.Kind != EventParticipants {
				continue
			}
			last = ev.Participants
			if ok(ev.Participants) {
				return ev.Participants
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected roster not received, last: %+v", last)
	return nil
}

func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected %v event: %+v", kind, ev)
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func findView(roster []ParticipantView, name string) (ParticipantView, bool) {
	for _, v := range roster {
		if v.Username == name {
			return v, true
		}
	}
	return ParticipantView{}, false
}

func user(id int64, name string, role Role) Authenticated {
	return Authenticated{AccountID: id, Username: name, Role: role}
}

func ptr(v int64) *int64 { return &v }

var errInjected = errors.New("injected failure")

// memStore is an in-memory store.ChatStore with failure injection.
type memStore struct {
	mu           sync.Mutex
	nextID       int64
	messages     []*store.Message
	participants []*store.Participant

	failAppend       bool
	failParticipants bool

	// Hooks run before the store lock is taken. Set them before use.
	beforeUpsert func(ref store.ParticipantRef, online bool)
	beforeRemove func(name string)
	beforeList   func()
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) AppendMessage(_ context.Context, sessionID string, sender store.ParticipantRef, recipientID *int64, kind store.MessageKind, content string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAppend {
		return nil, errInjected
	}
	m.nextID++
	msg := &store.Message{
		ID:          m.nextID,
		SessionID:   sessionID,
		SenderID:    sender.UserID,
		SenderName:  sender.DisplayName,
		SenderRole:  sender.Role,
		RecipientID: recipientID,
		Kind:        kind,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) ListRecentMessages(_ context.Context, sessionID string, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*store.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) UpsertParticipantOnline(_ context.Context, sessionID string, ref store.ParticipantRef, online bool) error {
	if m.beforeUpsert != nil {
		m.beforeUpsert(ref, online)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failParticipants {
		return errInjected
	}
	if p := m.findLocked(sessionID, ref); p != nil {
		p.IsOnline = online
		p.DisplayName = ref.DisplayName
		p.Role = ref.Role
		p.LastSeenAt = time.Now()
		return nil
	}
	m.participants = append(m.participants, &store.Participant{
		ID:          int64(len(m.participants) + 1),
		SessionID:   sessionID,
		UserID:      ref.UserID,
		DisplayName: ref.DisplayName,
		Role:        ref.Role,
		IsOnline:    online,
		JoinedAt:    time.Now(),
		LastSeenAt:  time.Now(),
	})
	return nil
}

func (m *memStore) RemoveParticipantByDisplayName(_ context.Context, sessionID, name string) error {
	if m.beforeRemove != nil {
		m.beforeRemove(name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failParticipants {
		return errInjected
	}
	kept := m.participants[:0]
	for _, p := range m.participants {
		if p.SessionID == sessionID && p.UserID == nil && p.DisplayName == name {
			continue
		}
		kept = append(kept, p)
	}
	m.participants = kept
	return nil
}

func (m *memStore) ListParticipants(_ context.Context, sessionID string) ([]*store.Participant, error) {
	if m.beforeList != nil {
		m.beforeList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failParticipants {
		return nil, errInjected
	}
	var out []*store.Participant
	for _, p := range m.participants {
		if p.SessionID == sessionID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) participant(sessionID string, ref store.ParticipantRef) (store.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.findLocked(sessionID, ref); p != nil {
		return *p, true
	}
	return store.Participant{}, false
}

func (m *memStore) rowCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.participants {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n
}

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memStore) findLocked(sessionID string, ref store.ParticipantRef) *store.Participant {
	for _, p := range m.participants {
		if p.SessionID != sessionID {
			continue
		}
		if ref.UserID != nil {
			if p.UserID != nil && *p.UserID == *ref.UserID {
				return p
			}
			continue
		}
		if p.UserID == nil && p.DisplayName == ref.DisplayName {
			return p
		}
	}
	return nil
}

// silentTransport never answers pings.
type silentTransport struct {
	mu     sync.Mutex
	closed bool
}

func (s *silentTransport) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *silentTransport) Close(string) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *silentTransport) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// stuckTransport ignores the probe deadline until release is closed.
type stuckTransport struct {
	silentTransport
	release chan struct{}
}

func (s *stuckTransport) Ping(context.Context) error {
	<-s.release
	return errInjected
}

// nextEvent returns the next event on ch or fails after two seconds.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return nil
	}
}

// countMessages drains ch for wait and counts new messages with content.
func countMessages(ch <-chan *Event, content string, wait time.Duration) int {
	n := 0
	timeout := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventNewMessage && ev.Message.Content == content {
				n++
			}
		case <-timeout:
			return n
		}
	}
}
