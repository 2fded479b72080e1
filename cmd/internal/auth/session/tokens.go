package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"conflux/cmd/identity/ids"
)

// Claims is the identity envelope embedded in both token classes.
type Claims struct {
	UserID    string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager issues and verifies one signed token class. The service holds
// two managers with independent secrets: access and refresh.
type TokenManager interface {
	Issue(userID, username string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}

type jwtManager struct {
	issuer string
	ttl    time.Duration
	secret []byte
}

// NewAccessTokenManager builds the access-domain manager from cfg.
func NewAccessTokenManager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &jwtManager{issuer: cfg.Issuer, ttl: cfg.AccessTTL, secret: cfg.AccessSecret}, nil
}

// NewRefreshTokenManager builds the refresh-domain manager from cfg.
func NewRefreshTokenManager(cfg Config) (TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &jwtManager{issuer: cfg.Issuer, ttl: cfg.RefreshTTL, secret: cfg.RefreshSecret}, nil
}

type jwtClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

func (m *jwtManager) Issue(userID, username string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	// A jti per token keeps back-to-back issues for the same account
	// distinct even within one timestamp tick; rotation depends on that.
	jti, err := ids.NewULID(now)
	if err != nil {
		return "", time.Time{}, err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtManager) Verify(token string, now time.Time) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{},
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID:   claims.Subject,
		Username: claims.Username,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
