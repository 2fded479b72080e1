package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"conflux/cmd/identity"
)

// Service implements the high-level session operations for Conflux.
type Service struct {
	cfg     Config
	store   identity.Store
	access  TokenManager
	refresh TokenManager
	log     *slog.Logger

	// dummyHash keeps login timing uniform when the account does not exist.
	dummyHash string
}

// Issued is the result of register, login, or refresh.
type Issued struct {
	Account      identity.Account
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// RegisterInput describes a registration request.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// NewService constructs a Service over the given credential store.
func NewService(cfg Config, store identity.Store, log *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	access, err := NewAccessTokenManager(cfg)
	if err != nil {
		return nil, err
	}
	refresh, err := NewRefreshTokenManager(cfg)
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, store: store, access: access, refresh: refresh, log: log}

	if hash, err := identity.HashPassword("conflux-dummy-password-for-timing"); err == nil {
		s.dummyHash = hash
	}

	return s, nil
}

const (
	usernameMinLength = 3
	usernameMaxLength = 24
)

func validateRegister(in RegisterInput) error {
	if !validEmail(in.Email) {
		return ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if n := len(strings.TrimSpace(in.Username)); n < usernameMinLength || n > usernameMaxLength {
		return ValidationError{Field: "username", Reason: "must be 3-24 characters"}
	}
	if n := len(in.Password); n < identity.PasswordMinLength || n > identity.PasswordMaxLength {
		return ValidationError{Field: "password", Reason: "must be 8-72 characters"}
	}
	return nil
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	if strings.ContainsAny(s, " \t") || strings.Contains(domain, "@") {
		return false
	}
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// Register creates an account and issues its first token pair.
// Duplicate email surfaces as identity.ConflictError.
func (s *Service) Register(ctx context.Context, now time.Time, in RegisterInput) (Issued, error) {
	if err := validateRegister(in); err != nil {
		return Issued{}, err
	}

	passwordHash, err := identity.HashPassword(in.Password)
	if err != nil {
		return Issued{}, ValidationError{Field: "password", Reason: err.Error()}
	}

	id, err := identity.NewAccountID(now)
	if err != nil {
		return Issued{}, err
	}

	acct, err := s.store.Create(ctx, identity.Account{
		ID:           id,
		Email:        strings.TrimSpace(in.Email),
		EmailNorm:    identity.NormalizeEmail(in.Email),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: passwordHash,
		CreatedAt:    now,
	})
	if err != nil {
		return Issued{}, err
	}

	issued, err := s.issueAndStore(ctx, now, acct)
	if err != nil {
		return Issued{}, err
	}

	s.log.Info("auth.register", "account_id", acct.ID)
	return issued, nil
}

// Login verifies the password and rotates in a fresh token pair.
// Every failure is reported as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, now time.Time, email, password string) (Issued, error) {
	acct, ok, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return Issued{}, err
	}
	if !ok {
		if s.dummyHash != "" {
			identity.VerifyPassword(password, s.dummyHash)
		}
		return Issued{}, ErrInvalidCredentials
	}

	if !identity.VerifyPassword(password, acct.PasswordHash) {
		s.log.Info("auth.login.fail", "account_id", acct.ID)
		return Issued{}, ErrInvalidCredentials
	}

	issued, err := s.issueAndStore(ctx, now, acct)
	if err != nil {
		return Issued{}, err
	}

	s.log.Info("auth.login", "account_id", acct.ID)
	return issued, nil
}

// Refresh validates a refresh token against the live hash and rotates it.
// The old token is unusable afterwards even though it has not expired.
// Every failure is reported as ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, now time.Time, refreshToken string) (Issued, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	// Sanity bound against pathological inputs.
	if refreshToken == "" || len(refreshToken) > 4096 {
		return Issued{}, ErrInvalidToken
	}

	claims, err := s.refresh.Verify(refreshToken, now)
	if err != nil {
		return Issued{}, ErrInvalidToken
	}

	acct, ok, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return Issued{}, err
	}
	if !ok || acct.RefreshTokenHash == nil {
		return Issued{}, ErrInvalidToken
	}

	currentHash := *acct.RefreshTokenHash
	if !identity.VerifyRefreshToken(refreshToken, currentHash) {
		s.log.Info("auth.refresh.mismatch", "account_id", acct.ID)
		return Issued{}, ErrInvalidToken
	}

	accessToken, accessExp, err := s.access.Issue(acct.ID, acct.Username, now)
	if err != nil {
		return Issued{}, err
	}
	newRefresh, refreshExp, err := s.refresh.Issue(acct.ID, acct.Username, now)
	if err != nil {
		return Issued{}, err
	}
	newHash, err := identity.HashRefreshToken(newRefresh)
	if err != nil {
		return Issued{}, err
	}

	// Compare-and-set on the hash string: of two concurrent refreshes with
	// the same prior token, only the first swap can match.
	if err := s.store.RotateRefreshHash(ctx, acct.ID, currentHash, newHash); err != nil {
		if identity.IsRotationConflict(err) || identity.IsNotFound(err) {
			return Issued{}, ErrInvalidToken
		}
		return Issued{}, err
	}

	s.log.Info("auth.refresh", "account_id", acct.ID)
	return Issued{
		Account:      acct,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: newRefresh,
		RefreshExp:   refreshExp,
	}, nil
}

// Logout clears the live refresh hash. A vanished account is a no-op.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if err := s.store.SetRefreshHash(ctx, accountID, nil); err != nil {
		if identity.IsNotFound(err) {
			return nil
		}
		return err
	}
	s.log.Info("auth.logout", "account_id", accountID)
	return nil
}

// Authenticate verifies an access token. Purely cryptographic plus expiry:
// no server-side session state is consulted.
func (s *Service) Authenticate(token string, now time.Time) (Claims, error) {
	return s.access.Verify(token, now)
}

// Account loads the account behind an id; absence is reported via ok=false.
func (s *Service) Account(ctx context.Context, id string) (identity.Account, bool, error) {
	return s.store.FindByID(ctx, id)
}

// issueAndStore mints both tokens and overwrites the live refresh hash
// (register and login both rotate unconditionally).
func (s *Service) issueAndStore(ctx context.Context, now time.Time, acct identity.Account) (Issued, error) {
	accessToken, accessExp, err := s.access.Issue(acct.ID, acct.Username, now)
	if err != nil {
		return Issued{}, err
	}
	refreshToken, refreshExp, err := s.refresh.Issue(acct.ID, acct.Username, now)
	if err != nil {
		return Issued{}, err
	}

	refreshHash, err := identity.HashRefreshToken(refreshToken)
	if err != nil {
		return Issued{}, err
	}
	if err := s.store.SetRefreshHash(ctx, acct.ID, &refreshHash); err != nil {
		return Issued{}, err
	}

	return Issued{
		Account:      acct,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}
