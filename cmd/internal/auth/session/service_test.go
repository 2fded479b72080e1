package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"conflux/cmd/identity"
)

func newTestService(t *testing.T) (*Service, *identity.MemoryStore) {
	t.Helper()

	store := identity.NewMemoryStore()
	svc, err := NewService(testConfig(), store, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, store
}

func registerAlice(t *testing.T, svc *Service, now time.Time) Issued {
	t.Helper()

	issued, err := svc.Register(context.Background(), now, RegisterInput{
		Email:    "a@x.com",
		Username: "alice",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return issued
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	reg := registerAlice(t, svc, now)
	if reg.AccessToken == "" || reg.RefreshToken == "" {
		t.Fatalf("register must issue both tokens")
	}

	login, err := svc.Login(ctx, now.Add(time.Minute), "A@X.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.Authenticate(login.AccessToken, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("access token from login must verify: %v", err)
	}
	if claims.UserID != reg.Account.ID || claims.Username != "alice" {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Username: "alice", Password: "password1"}},
		{"short username", RegisterInput{Email: "a@x.com", Username: "al", Password: "password1"}},
		{"long username", RegisterInput{Email: "a@x.com", Username: "abcdefghijklmnopqrstuvwxy", Password: "password1"}},
		{"short password", RegisterInput{Email: "a@x.com", Username: "alice", Password: "short"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, now, tc.in); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	registerAlice(t, svc, now)

	_, err := svc.Register(ctx, now.Add(time.Second), RegisterInput{
		Email:    "A@x.com",
		Username: "alice2",
		Password: "password1",
	})
	if !identity.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	registerAlice(t, svc, now)

	_, errWrongPassword := svc.Login(ctx, now, "a@x.com", "wrong-password")
	_, errUnknownEmail := svc.Login(ctx, now, "nobody@x.com", "password1")

	if !errors.Is(errWrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", errWrongPassword)
	}
	if !errors.Is(errUnknownEmail, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", errUnknownEmail)
	}
	if errWrongPassword.Error() != errUnknownEmail.Error() {
		t.Fatalf("outcomes must be indistinguishable: %q vs %q",
			errWrongPassword, errUnknownEmail)
	}
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	reg := registerAlice(t, svc, now)

	refreshed, err := svc.Refresh(ctx, now.Add(time.Hour), reg.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatalf("refresh must issue both tokens")
	}
	if refreshed.RefreshToken == reg.RefreshToken {
		t.Fatalf("refresh token must rotate")
	}

	// The old token has not expired, but rotation made it unusable.
	if _, err := svc.Refresh(ctx, now.Add(2*time.Hour), reg.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reused refresh token must fail with ErrInvalidToken, got %v", err)
	}

	// The rotated token is good for exactly the next refresh.
	if _, err := svc.Refresh(ctx, now.Add(3*time.Hour), refreshed.RefreshToken); err != nil {
		t.Fatalf("rotated token must work once: %v", err)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	reg := registerAlice(t, svc, now)

	const racers = 2
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, now.Add(time.Hour), reg.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidToken):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful refresh, got %d", wins)
	}
}

func TestRefreshExpiredTokenFails(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	reg := registerAlice(t, svc, now)

	past := now.Add(7*24*time.Hour + time.Second)
	if _, err := svc.Refresh(ctx, past, reg.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired refresh token must fail, got %v", err)
	}
}

func TestLogoutClearsLiveRefreshHash(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t)

	reg := registerAlice(t, svc, now)

	if err := svc.Logout(ctx, reg.Account.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	a, _, _ := store.FindByID(ctx, reg.Account.ID)
	if a.RefreshTokenHash != nil {
		t.Fatalf("refresh hash must be cleared on logout")
	}

	// The refresh token is still signature-valid and unexpired, but there is
	// no live hash to match.
	if _, err := svc.Refresh(ctx, now.Add(time.Minute), reg.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh after logout must fail, got %v", err)
	}
}

func TestLogoutUnknownAccountIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Logout(context.Background(), "missing"); err != nil {
		t.Fatalf("logout of vanished account must be a no-op, got %v", err)
	}
}

func TestLoginRotatesRefreshHash(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t)

	reg := registerAlice(t, svc, now)

	// Login overwrites the live hash; the registration-issued refresh token
	// is no longer usable.
	login, err := svc.Login(ctx, now.Add(time.Minute), "a@x.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Refresh(ctx, now.Add(2*time.Minute), reg.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("pre-login refresh token must be dead, got %v", err)
	}
	if _, err := svc.Refresh(ctx, now.Add(3*time.Minute), login.RefreshToken); err != nil {
		t.Fatalf("login-issued refresh token must work: %v", err)
	}
}
