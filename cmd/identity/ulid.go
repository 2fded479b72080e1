package identity

import (
	"time"

	"conflux/cmd/identity/ids"
)

// NewAccountID returns a new ULID used as account id.
func NewAccountID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
