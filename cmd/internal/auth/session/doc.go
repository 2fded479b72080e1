// Package session owns the credential lifecycle: it issues and verifies the
// two signed token classes (access, refresh) and drives the per-account state
// machine for register, login, refresh rotation, and logout.
//
// Refresh tokens are single-use in practice: every successful refresh rotates
// the server-stored hash, so a stolen-but-unused token buys at most one use.
package session
