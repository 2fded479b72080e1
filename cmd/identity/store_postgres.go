package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable credential store, enabled when a database URL
// is configured. The schema is created on startup via EnsureSchema; there is
// no separate migration tooling for this single table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore on an existing pool.
// The pool lifecycle is owned by the caller (app).
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const accountsSchemaSQL = `
CREATE SCHEMA IF NOT EXISTS conflux;
CREATE TABLE IF NOT EXISTS conflux.accounts (
	id                 text PRIMARY KEY,
	email              text NOT NULL,
	email_norm         text NOT NULL UNIQUE,
	username           text NOT NULL,
	password_hash      text NOT NULL,
	avatar_url         text NOT NULL DEFAULT '',
	about_text         text NOT NULL DEFAULT '',
	about_video_url    text NOT NULL DEFAULT '',
	refresh_token_hash text,
	created_at         timestamptz NOT NULL
);
`

// EnsureSchema creates the accounts table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, accountsSchemaSQL)
	return err
}

const accountColumns = `id, email, email_norm, username, password_hash,
	avatar_url, about_text, about_video_url, refresh_token_hash, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.EmailNorm, &a.Username, &a.PasswordHash,
		&a.AvatarURL, &a.AboutText, &a.AboutVideoURL, &a.RefreshTokenHash, &a.CreatedAt,
	)
	return a, err
}

// Create inserts the account; a unique violation on email_norm maps to ConflictError.
func (s *PostgresStore) Create(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" || a.EmailNorm == "" {
		return Account{}, OpErrorf("identity.Create", ErrInvalidInput, "missing id or email")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conflux.accounts
			(id, email, email_norm, username, password_hash,
			 avatar_url, about_text, about_video_url, refresh_token_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.Email, a.EmailNorm, a.Username, a.PasswordHash,
		a.AvatarURL, a.AboutText, a.AboutVideoURL, a.RefreshTokenHash, a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			field := "email"
			if pgErr.ConstraintName == "accounts_pkey" {
				field = "id"
			}
			return Account{}, ConflictError{Op: "identity.Create", Field: field}
		}
		return Account{}, err
	}
	return a, nil
}

// FindByEmail looks up by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Account, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM conflux.accounts
		WHERE email_norm = $1
	`, NormalizeEmail(email))

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return a, true, nil
}

// FindByID looks up by account id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Account, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM conflux.accounts
		WHERE id = $1
	`, id)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return a, true, nil
}

// Update merges non-nil patch fields via COALESCE and returns the new row.
func (s *PostgresStore) Update(ctx context.Context, id string, p Patch) (Account, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE conflux.accounts SET
			username        = COALESCE($2, username),
			avatar_url      = COALESCE($3, avatar_url),
			about_text      = COALESCE($4, about_text),
			about_video_url = COALESCE($5, about_video_url)
		WHERE id = $1
		RETURNING `+accountColumns+`
	`, id, p.Username, p.AvatarURL, p.AboutText, p.AboutVideoURL)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, NotFoundError{Op: "identity.Update", Resource: "account"}
	}
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

// SetRefreshHash overwrites the live refresh hash (nil clears it).
func (s *PostgresStore) SetRefreshHash(ctx context.Context, id string, hash *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conflux.accounts SET refresh_token_hash = $2 WHERE id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: "identity.SetRefreshHash", Resource: "account"}
	}
	return nil
}

// RotateRefreshHash swaps current -> next as a single conditional UPDATE, so
// the compare-and-set happens inside the database and concurrent rotations
// for the same account cannot both match.
func (s *PostgresStore) RotateRefreshHash(ctx context.Context, id, current, next string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conflux.accounts
		SET refresh_token_hash = $3
		WHERE id = $1 AND refresh_token_hash = $2
	`, id, current, next)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a vanished account from a lost race.
		var exists bool
		if err := s.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM conflux.accounts WHERE id = $1)
		`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return NotFoundError{Op: "identity.RotateRefreshHash", Resource: "account"}
		}
		return OpErrorf("identity.RotateRefreshHash", ErrRotationConflict, "stored hash changed")
	}
	return nil
}
