package identity

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Refresh-token hashing.
//
// The server stores only a one-way salted hash of the live refresh token, so
// a store compromise does not leak usable tokens. Signed refresh tokens are
// longer than bcrypt's 72-byte input cap, so they are pre-digested with
// SHA-256 before bcrypt. Same hashing class as the password path, cheaper
// cost because the input already carries full token entropy.
const refreshHashCost = 10

func refreshDigest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum[:])
	return out
}

// HashRefreshToken returns the server-stored hash for a refresh token.
func HashRefreshToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(refreshDigest(token), refreshHashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyRefreshToken reports whether token matches the stored hash.
func VerifyRefreshToken(token, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), refreshDigest(token)) == nil
}
