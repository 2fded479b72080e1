package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Password hashing (bcrypt).
//
// bcrypt embeds a per-hash random salt and is deliberately slow, which covers
// both the rainbow-table and timing concerns for credential comparison.
// Policy bounds (8..72) mirror the registration contract; 72 is also bcrypt's
// input cap in bytes.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 72

	passwordHashCost = 12
)

var (
	// ErrPasswordTooShort is returned when the password is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when the password exceeds the maximum length.
	ErrPasswordTooLong = errors.New("password too long")
)

// HashPassword returns a bcrypt hash of the password, enforcing length policy.
func HashPassword(plain string) (string, error) {
	if len(plain) < PasswordMinLength {
		return "", ErrPasswordTooShort
	}
	if len(plain) > PasswordMaxLength {
		return "", ErrPasswordTooLong
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plain), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// Any mismatch or malformed hash yields false; callers surface a generic
// invalid-credentials outcome regardless of the root cause.
func VerifyPassword(plain, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
}
