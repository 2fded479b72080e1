package identity

import (
	"context"
	"time"
)

// Account is Conflux's canonical security principal.
type Account struct {
	ID string

	// Email keeps the casing supplied at registration; EmailNorm is the
	// canonical lookup key and carries the uniqueness invariant.
	Email     string
	EmailNorm string

	Username     string
	PasswordHash string

	// Optional profile fields.
	AvatarURL     string
	AboutText     string
	AboutVideoURL string

	// RefreshTokenHash is the hash of the single live refresh token, or nil
	// when the account has no live session (never logged in, or logged out).
	// The plain refresh token is never stored server-side.
	RefreshTokenHash *string

	CreatedAt time.Time
}

// Patch describes a partial profile update. Nil fields are left untouched.
// Refresh-hash mutations have dedicated Store methods because they carry a
// stricter concurrency contract.
type Patch struct {
	Username      *string
	AvatarURL     *string
	AboutText     *string
	AboutVideoURL *string
}

// Store is the credential persistence boundary.
//
// Implementations must serialize concurrent writes to the same account id so
// that a read-modify-write (rotating the refresh hash) cannot lose an update
// under concurrent refresh calls for the same account.
type Store interface {
	// Create inserts a new account. Returns ConflictError when the
	// normalized email already maps to an account.
	Create(ctx context.Context, a Account) (Account, error)

	// FindByEmail looks up an account by email, case-insensitively.
	// Absence is reported via ok=false, not an error.
	FindByEmail(ctx context.Context, email string) (a Account, ok bool, err error)

	// FindByID looks up an account by id. Absence is reported via ok=false.
	FindByID(ctx context.Context, id string) (a Account, ok bool, err error)

	// Update merges non-nil patch fields into the account. An unknown id
	// yields ErrNotFound; callers treat that as a no-op, not a crash.
	Update(ctx context.Context, id string, p Patch) (Account, error)

	// SetRefreshHash overwrites the live refresh hash unconditionally.
	// A nil hash clears it (logout). Unknown id yields ErrNotFound.
	SetRefreshHash(ctx context.Context, id string, hash *string) error

	// RotateRefreshHash swaps the live refresh hash from current to next as a
	// single compare-and-set. It fails with ErrRotationConflict when the
	// stored hash no longer equals current (another rotation won, or the
	// account logged out), and ErrNotFound for an unknown id.
	RotateRefreshHash(ctx context.Context, id, current, next string) error
}
