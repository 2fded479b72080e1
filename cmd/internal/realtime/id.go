package realtime

import (
	"time"

	"conflux/cmd/identity/ids"
)

// NewEndpointID returns a ULID used as the ephemeral id of a live connection.
func NewEndpointID(now time.Time) (string, error) {
	return ids.NewULID(now)
}

// NewMessageID returns a ULID used as chat message id.
// ULID is preferable to random hex for tracing and ordering in logs.
func NewMessageID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
