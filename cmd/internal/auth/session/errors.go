package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is the single outcome for every login failure.
	// Account-not-found and wrong-password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is the single outcome for every access/refresh token
	// failure: bad signature, malformed structure, expiry, or rotation loss.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid or missing configuration.
	ErrConfig = errors.New("invalid config")
)

// ValidationError reports a malformed or out-of-range request field.
// It is recovered locally by rejecting the request with details.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
