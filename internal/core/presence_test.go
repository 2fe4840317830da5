package core

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRosterMergesStorageAndLiveness(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewRegistry()
	p := NewPresence(reg, st, nil, 0)

	alice := user(1, "alice", RoleUser)
	bob := user(2, "bob", RoleAdmin)
	ghost := Guest{DisplayName: "ghost", Role: RoleUser}
	viewer := Guest{DisplayName: "viewer", Role: RoleUser}
	carol := user(3, "carol", RoleUser)

	// alice: stored, offline. bob: stored, live. ghost: stale guest row.
	// viewer: stored guest, live. carol: live but missing from storage.
	for _, id := range []Identity{alice, bob, ghost, viewer} {
		require.NoError(t, st.UpsertParticipantOnline(ctx, "s1", participantRef(id), true))
	}
	register(reg, NewClient("b", nil, 0), bob, "s1")
	register(reg, NewClient("v", nil, 0), viewer, "s1")
	register(reg, NewClient("c", nil, 0), carol, "s1")

	roster := p.Roster(ctx, "s1")
	require.Len(t, roster, 4)

	got := map[string]ParticipantView{}
	for _, v := range roster {
		got[v.Username] = v
	}
	require.False(t, got["alice"].IsOnline)
	require.True(t, got["bob"].IsOnline)
	require.True(t, got["viewer"].IsOnline)
	require.True(t, got["viewer"].IsGuest)
	require.True(t, got["carol"].IsOnline)
	require.Equal(t, int64(3), *got["carol"].UserID)
	_, listed := got["ghost"]
	require.False(t, listed)
}

func TestRosterFallsBackToLiveOnStoreFailure(t *testing.T) {
	st := newMemStore()
	st.failParticipants = true
	reg := NewRegistry()
	p := NewPresence(reg, st, nil, 0)

	register(reg, NewClient("a", nil, 0), user(1, "alice", RoleUser), "s1")
	roster := p.Roster(context.Background(), "s1")
	require.Len(t, roster, 1)
	require.True(t, roster[0].IsOnline)
}

func TestRefreshBroadcastsToSessionOnly(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry()
	p := NewPresence(reg, st, nil, 0)

	in := NewClient("in", nil, 4)
	out := NewClient("out", nil, 4)
	register(reg, in, user(1, "alice", RoleUser), "s1")
	register(reg, out, user(2, "bob", RoleUser), "s2")

	p.Refresh(context.Background(), "s1")
	require.Len(t, in.Events, 1)
	require.Empty(t, out.Events)
	ev := <-in.Events
	require.Equal(t, EventParticipants, ev.Kind)
	require.Len(t, ev.Participants, 1)
}

func TestMarkDepartedSkipsLiveKey(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewRegistry()
	p := NewPresence(reg, st, nil, 0)
	guest := Guest{DisplayName: "viewer", Role: RoleUser}

	require.NoError(t, st.UpsertParticipantOnline(ctx, "s1", participantRef(guest), true))
	old := NewClient("old", nil, 0)
	register(reg, old, guest, "s1")
	entry, _ := reg.Lookup(old)

	// A reconnect took the key before the old connection's cleanup ran.
	register(reg, NewClient("new", nil, 0), guest, "s1")
	p.MarkDeparted(ctx, entry)

	_, ok := st.participant("s1", participantRef(guest))
	require.True(t, ok)
}

func TestMarkDepartedRestoresGuestRowOnReconnectDuringRemove(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	reg := NewRegistry()
	p := NewPresence(reg, st, nil, 0)
	guest := Guest{DisplayName: "viewer", Role: RoleUser}

	require.NoError(t, st.UpsertParticipantOnline(ctx, "s1", participantRef(guest), true))
	old := NewClient("old", nil, 0)
	register(reg, old, guest, "s1")
	entry, ok := reg.Unregister(old)
	require.True(t, ok)

	// The reconnect lands after the liveness check but before the delete.
	st.beforeRemove = func(string) {
		register(reg, NewClient("new", nil, 0), guest, "s1")
		require.NoError(t, st.UpsertParticipantOnline(ctx, "s1", participantRef(guest), true))
	}
	p.MarkDeparted(ctx, entry)

	row, ok := st.participant("s1", participantRef(guest))
	require.True(t, ok)
	require.True(t, row.IsOnline)
}

func TestRefreshDropsSupersededRoster(t *testing.T) {
	st := newMemStore()
	reg := NewRegistry()
	p := NewPresence(reg, st, nil, 0)
	c := NewClient("c", nil, 8)
	register(reg, c, user(1, "alice", RoleUser), "s1")

	// The first refresh stalls in storage while a second one completes.
	stalled := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	st.beforeList = func() {
		if calls.Add(1) == 1 {
			close(stalled)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		p.Refresh(context.Background(), "s1")
		close(done)
	}()
	<-stalled

	register(reg, NewClient("d", nil, 8), user(2, "dave", RoleUser), "s1")
	p.Refresh(context.Background(), "s1")
	close(release)
	<-done

	require.Len(t, c.Events, 1)
	ev := <-c.Events
	require.Len(t, ev.Participants, 2)
}

func TestSendHistoryEmptyOnEmptySession(t *testing.T) {
	reg := NewRegistry()
	p := NewPresence(reg, newMemStore(), nil, 0)
	c := NewClient("c", nil, 1)
	alice := user(1, "alice", RoleUser)
	entry, _, _ := reg.Register(NewClientKey(alice, "nobody-here"), c, alice, "nobody-here")

	p.SendHistory(context.Background(), entry)
	ev := <-c.Events
	require.Equal(t, EventHistory, ev.Kind)
	require.Empty(t, ev.Messages)
}
