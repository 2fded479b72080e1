package authapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"conflux/cmd/identity"
	"conflux/cmd/internal/auth/session"
)

func testSessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.AccessSecret = []byte("access-secret-0123456789-0123456789-abc")
	cfg.RefreshSecret = []byte("refresh-secret-0123456789-0123456789-ab")
	return cfg
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	svc, err := session.NewService(testSessionConfig(), identity.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	h := NewHandler(nil, LoadConfigFromEnv(), svc)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func refreshCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "conflux_refresh" {
			return c
		}
	}
	t.Fatalf("no refresh cookie in response")
	return nil
}

const registerAliceBody = `{"email":"a@x.com","username":"alice","password":"password1"}`

func TestRegister(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/auth/register", registerAliceBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("accessToken must be non-empty")
	}
	if resp.User.Email != "a@x.com" || resp.User.Username != "alice" {
		t.Fatalf("user=%+v", resp.User)
	}

	c := refreshCookie(t, rec)
	if !c.HttpOnly {
		t.Fatalf("refresh cookie must be httpOnly")
	}
	if c.Path != "/api/auth/refresh" {
		t.Fatalf("refresh cookie must be path-scoped, got %q", c.Path)
	}

	// Same email again, different casing: 409.
	dup := doJSON(t, mux, http.MethodPost, "/api/auth/register",
		`{"email":"A@X.com","username":"alice2","password":"password1"}`, nil)
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate email: status=%d", dup.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad email", `{"email":"nope","username":"alice","password":"password1"}`},
		{"short password", `{"email":"a@x.com","username":"alice","password":"short"}`},
		{"short username", `{"email":"a@x.com","username":"al","password":"password1"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/auth/register", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLoginGenericFailure(t *testing.T) {
	mux := newTestMux(t)
	doJSON(t, mux, http.MethodPost, "/api/auth/register", registerAliceBody, nil)

	wrongPassword := doJSON(t, mux, http.MethodPost, "/api/auth/login",
		`{"email":"a@x.com","password":"wrong-password"}`, nil)
	unknownEmail := doJSON(t, mux, http.MethodPost, "/api/auth/login",
		`{"email":"nobody@x.com","password":"password1"}`, nil)

	if wrongPassword.Code != http.StatusUnauthorized || unknownEmail.Code != http.StatusUnauthorized {
		t.Fatalf("status wrong=%d unknown=%d", wrongPassword.Code, unknownEmail.Code)
	}
	// The body must not reveal whether the email exists.
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Fatalf("login failures must be indistinguishable: %q vs %q",
			wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestRefreshFlow(t *testing.T) {
	mux := newTestMux(t)

	reg := doJSON(t, mux, http.MethodPost, "/api/auth/register", registerAliceBody, nil)
	first := refreshCookie(t, reg)

	// No cookie: 401.
	bare := doJSON(t, mux, http.MethodPost, "/api/auth/refresh", "", nil)
	if bare.Code != http.StatusUnauthorized {
		t.Fatalf("refresh without cookie: status=%d", bare.Code)
	}

	// With the cookie: 200 and a rotated cookie.
	ok := doJSON(t, mux, http.MethodPost, "/api/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(first)
	})
	if ok.Code != http.StatusOK {
		t.Fatalf("refresh: status=%d body=%s", ok.Code, ok.Body.String())
	}
	var resp refreshResponse
	if err := json.Unmarshal(ok.Body.Bytes(), &resp); err != nil || resp.AccessToken == "" {
		t.Fatalf("refresh response: %v %s", err, ok.Body.String())
	}
	second := refreshCookie(t, ok)
	if second.Value == first.Value {
		t.Fatalf("refresh cookie must rotate")
	}

	// Replaying the first cookie after rotation: 401.
	replay := doJSON(t, mux, http.MethodPost, "/api/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(first)
	})
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh token: status=%d", replay.Code)
	}
}

func TestMe(t *testing.T) {
	mux := newTestMux(t)

	reg := doJSON(t, mux, http.MethodPost, "/api/auth/register", registerAliceBody, nil)
	var auth authResponse
	if err := json.Unmarshal(reg.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/auth/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status=%d body=%s", rec.Code, rec.Body.String())
	}

	var me userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.ID != auth.User.ID || me.Email != "a@x.com" {
		t.Fatalf("me=%+v", me)
	}

	missing := doJSON(t, mux, http.MethodGet, "/api/auth/me", "", nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: status=%d", missing.Code)
	}

	garbage := doJSON(t, mux, http.MethodGet, "/api/auth/me", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})
	if garbage.Code != http.StatusUnauthorized {
		t.Fatalf("me with garbage token: status=%d", garbage.Code)
	}
}

func TestLogoutInvalidatesRefresh(t *testing.T) {
	mux := newTestMux(t)

	reg := doJSON(t, mux, http.MethodPost, "/api/auth/register", registerAliceBody, nil)
	cookie := refreshCookie(t, reg)
	var auth authResponse
	if err := json.Unmarshal(reg.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode: %v", err)
	}

	out := doJSON(t, mux, http.MethodPost, "/api/auth/logout", "", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	})
	if out.Code != http.StatusOK {
		t.Fatalf("logout: status=%d body=%s", out.Code, out.Body.String())
	}
	var ok okResponse
	if err := json.Unmarshal(out.Body.Bytes(), &ok); err != nil || !ok.OK {
		t.Fatalf("logout body: %v %s", err, out.Body.String())
	}

	// Refresh with the pre-logout cookie: the live hash is gone.
	rec := doJSON(t, mux, http.MethodPost, "/api/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status=%d", rec.Code)
	}
}
