package utils

import "github.com/google/uuid"

// NewID returns a unique connection identifier.
func NewID() string {
	return uuid.NewString()
}

// NewEphemeralID returns an identifier for messages that are never persisted.
// The prefix keeps it distinct from numeric store ids.
func NewEphemeralID() string {
	return "eph-" + uuid.NewString()
}
