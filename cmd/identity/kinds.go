package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	// ErrRotationConflict is returned by RotateRefreshHash when the stored
	// refresh hash no longer matches the expected value. At most one of two
	// concurrent rotations for the same account can win.
	ErrRotationConflict = errors.New("rotation_conflict")
)
