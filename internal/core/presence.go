package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/streamlink/chatcore/internal/store"
)

// DefaultHistoryLimit is how many persisted messages a joining client receives.
const DefaultHistoryLimit = 20

// Presence derives the roster of a session from durable participant rows and
// registry liveness, and pushes it to every connection of the session.
type Presence struct {
	registry     *Registry
	store        store.ChatStore
	log          *zerolog.Logger
	historyLimit int

	mu      sync.Mutex
	refresh map[string]*refreshSeq
}

// refreshSeq orders the roster refreshes of one session. Storage is read
// without holding any lock; a refresh is broadcast only if no refresh issued
// after it has been broadcast already.
type refreshSeq struct {
	issued    uint64
	broadcast uint64
	inflight  int
}

// NewPresence builds a tracker. historyLimit <= 0 selects DefaultHistoryLimit.
func NewPresence(registry *Registry, st store.ChatStore, logger *zerolog.Logger, historyLimit int) *Presence {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Presence{
		registry:     registry,
		store:        st,
		log:          orNop(logger),
		historyLimit: historyLimit,
		refresh:      make(map[string]*refreshSeq),
	}
}

// MarkOnline upserts the participant row for a joining identity.
func (p *Presence) MarkOnline(ctx context.Context, session string, id Identity) {
	if err := p.store.UpsertParticipantOnline(ctx, session, participantRef(id), true); err != nil {
		p.log.Warn().Err(err).Str("session_id", session).Str("username", id.Name()).Msg("mark participant online failed")
	}
}

// MarkDeparted records that an entry left: authenticated rows go offline,
// guest rows are deleted.
func (p *Presence) MarkDeparted(ctx context.Context, entry *Entry) {
	// Same key registered again by a reconnect: the identity is still present.
	if p.registry.IsLive(entry.Key) {
		return
	}

	var err error
	switch id := entry.Identity.(type) {
	case Authenticated:
		err = p.store.UpsertParticipantOnline(ctx, entry.Session, participantRef(id), false)
		// The reconnect may also land while the write is in flight.
		if err == nil && p.registry.IsLive(entry.Key) {
			err = p.store.UpsertParticipantOnline(ctx, entry.Session, participantRef(id), true)
		}
	case Guest:
		err = p.store.RemoveParticipantByDisplayName(ctx, entry.Session, id.DisplayName)
		if err == nil && p.registry.IsLive(entry.Key) {
			err = p.store.UpsertParticipantOnline(ctx, entry.Session, participantRef(id), true)
		}
	}
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", entry.Session).Str("username", entry.Identity.Name()).Msg("record participant departure failed")
	}
}

// SendHistory loads the last messages of the entry's session, oldest first,
// and activates the entry with them so they precede any live event.
// A failed read degrades to an empty history.
func (p *Presence) SendHistory(ctx context.Context, entry *Entry) {
	stored, err := p.store.ListRecentMessages(ctx, entry.Session, p.historyLimit)
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", entry.Session).Msg("load message history failed")
		stored = nil
	}

	messages := lo.Map(stored, func(m *store.Message, _ int) Message { return messageFromStore(m) })
	entry.Activate(&Event{Kind: EventHistory, Session: entry.Session, Messages: messages})
}

// Refresh recomputes the roster of session and broadcasts it to the session.
// A result superseded by a later refresh is returned but not broadcast.
func (p *Presence) Refresh(ctx context.Context, session string) []ParticipantView {
	gen := p.beginRefresh(session)
	roster := p.Roster(ctx, session)

	// Held only for non-blocking sends.
	p.mu.Lock()
	defer p.mu.Unlock()

	seq := p.refresh[session]
	seq.inflight--
	if seq.inflight == 0 {
		delete(p.refresh, session)
	}
	if gen <= seq.broadcast {
		p.log.Debug().Str("session_id", session).Msg("roster superseded by a newer refresh")
		return roster
	}
	seq.broadcast = gen

	ev := &Event{Kind: EventParticipants, Session: session, Participants: roster}
	for _, entry := range p.registry.ListBySession(session) {
		if !entry.Deliver(ev) {
			p.log.Debug().Str("client_id", entry.Client.ID).Str("session_id", session).Msg("dropping roster for slow or closed client")
		}
	}
	return roster
}

func (p *Presence) beginRefresh(session string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	seq, ok := p.refresh[session]
	if !ok {
		seq = &refreshSeq{}
		p.refresh[session] = seq
	}
	seq.issued++
	seq.inflight++
	return seq.issued
}

// Roster merges stored participants with live connections: authenticated rows
// are online iff a live entry exists, guests are listed only while live, and
// live identities missing from storage are appended in join order.
func (p *Presence) Roster(ctx context.Context, session string) []ParticipantView {
	rows, err := p.store.ListParticipants(ctx, session)
	if err != nil {
		p.log.Warn().Err(err).Str("session_id", session).Msg("list participants failed, using live connections only")
		rows = nil
	}

	live := p.registry.ListBySession(session)
	liveKeys := lo.SliceToMap(live, func(e *Entry) (string, bool) {
		return identityKey(e.Identity), true
	})

	roster := make([]ParticipantView, 0, len(rows)+len(live))
	listed := make(map[string]struct{}, len(rows)+len(live))

	for _, row := range rows {
		if row.UserID != nil {
			key := accountKey(*row.UserID)
			if _, dup := listed[key]; dup {
				continue
			}
			listed[key] = struct{}{}
			userID := *row.UserID
			roster = append(roster, ParticipantView{
				UserID:   &userID,
				Username: row.DisplayName,
				Role:     Role(row.Role),
				IsOnline: liveKeys[key],
			})
			continue
		}

		key := guestKey(row.DisplayName)
		if !liveKeys[key] {
			p.log.Warn().Str("session_id", session).Str("username", row.DisplayName).Msg("stale guest participant row without live connection")
			continue
		}
		if _, dup := listed[key]; dup {
			continue
		}
		listed[key] = struct{}{}
		roster = append(roster, ParticipantView{
			Username: row.DisplayName,
			Role:     Role(row.Role),
			IsOnline: true,
			IsGuest:  true,
		})
	}

	for _, entry := range live {
		key := identityKey(entry.Identity)
		if _, ok := listed[key]; ok {
			continue
		}
		listed[key] = struct{}{}
		roster = append(roster, liveView(entry.Identity))
	}

	return roster
}

func liveView(id Identity) ParticipantView {
	view := ParticipantView{Username: id.Name(), Role: RoleOf(id), IsOnline: true}
	switch v := id.(type) {
	case Authenticated:
		accountID := v.AccountID
		view.UserID = &accountID
	case Guest:
		view.IsGuest = true
	}
	return view
}
