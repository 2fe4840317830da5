package core

import (
	"strconv"

	"github.com/streamlink/chatcore/internal/store"
)

// Role is the privilege level a participant joined with.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEngineer Role = "engineer"
	RoleUser     Role = "user"
)

// ParseRole maps a wire value to a Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleAdmin, RoleEngineer, RoleUser:
		return r, true
	default:
		return "", false
	}
}

// Privileged reports whether the role may broadcast and listen to all sessions.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleEngineer
}

// Identity is either Authenticated or Guest. The set is closed: only types in
// this package implement it.
type Identity interface {
	// Name is the display name shown in rosters and messages.
	Name() string
	isIdentity()
}

// Authenticated is a participant backed by a durable account.
type Authenticated struct {
	AccountID int64
	Username  string
	Role      Role
}

// Guest is a session-scoped viewer without an account.
type Guest struct {
	DisplayName string
	Role        Role
}

func (a Authenticated) Name() string { return a.Username }
func (g Guest) Name() string         { return g.DisplayName }

func (Authenticated) isIdentity() {}
func (Guest) isIdentity()         {}

// RoleOf returns the role carried by an identity.
func RoleOf(id Identity) Role {
	switch v := id.(type) {
	case Authenticated:
		return v.Role
	case Guest:
		return v.Role
	default:
		return ""
	}
}

// AccountID returns the account id of an authenticated identity.
func AccountID(id Identity) (int64, bool) {
	if a, ok := id.(Authenticated); ok {
		return a.AccountID, true
	}
	return 0, false
}

// identityKey is unique per identity within a session: account id for
// authenticated users, display name for guests.
func identityKey(id Identity) string {
	switch v := id.(type) {
	case Authenticated:
		return accountKey(v.AccountID)
	case Guest:
		return guestKey(v.DisplayName)
	default:
		return ""
	}
}

func accountKey(id int64) string  { return "account:" + strconv.FormatInt(id, 10) }
func guestKey(name string) string { return "guest:" + name }

func participantRef(id Identity) store.ParticipantRef {
	switch v := id.(type) {
	case Authenticated:
		accountID := v.AccountID
		return store.ParticipantRef{UserID: &accountID, DisplayName: v.Username, Role: string(v.Role)}
	case Guest:
		return store.ParticipantRef{DisplayName: v.DisplayName, Role: string(v.Role)}
	default:
		return store.ParticipantRef{}
	}
}

// ClientKey deduplicates connections: at most one live registry entry exists per key.
type ClientKey struct {
	Session  string
	Identity string
}

// NewClientKey derives the key for identity within session.
func NewClientKey(id Identity, session string) ClientKey {
	return ClientKey{Session: session, Identity: identityKey(id)}
}
