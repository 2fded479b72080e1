// Package authapi exposes the session lifecycle over HTTP.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"conflux/cmd/identity"
	"conflux/cmd/internal/auth/session"
	"conflux/cmd/internal/metrics"
)

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service
	throttle *loginThrottle
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		cfg:      cfg,
		sessions: sessions,
		throttle: newLoginThrottle(cfg.LoginIPMax, cfg.LoginIPWindow),
	}
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/me", h.handleMe)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
}

func toUserResponse(a identity.Account) userResponse {
	return userResponse{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		AvatarURL: a.AvatarURL,
		AboutText: a.AboutText,
	}
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now().UTC()
	issued, err := h.sessions.Register(r.Context(), now, session.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var ve session.ValidationError
		switch {
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email already in use")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: issued.AccessToken,
		User:        toUserResponse(issued.Account),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)

	if blocked, retryAfter := h.throttle.Blocked(ip, now); blocked {
		h.log.Info("auth.login.throttled", "remote", ip, "retry_after", retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	issued, err := h.sessions.Login(r.Context(), now, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			// One generic outcome for every root cause; no account enumeration.
			h.throttle.RecordFailure(ip, now)
			metrics.AuthFailuresTotal.WithLabelValues("login").Inc()
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken: issued.AccessToken,
		User:        toUserResponse(issued.Account),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token, ok := h.refreshTokenFromCookie(r)
	if !ok {
		metrics.AuthFailuresTotal.WithLabelValues("refresh").Inc()
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	now := time.Now().UTC()
	issued, err := h.sessions.Refresh(r.Context(), now, token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidToken) {
			metrics.AuthFailuresTotal.WithLabelValues("refresh").Inc()
			writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		h.log.Error("auth.refresh.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: issued.AccessToken})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	acct, found, err := h.sessions.Account(r.Context(), claims.UserID)
	if err != nil {
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	resp := toUserResponse(acct)
	resp.AboutVideoURL = acct.AboutVideoURL
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Logout(r.Context(), claims.UserID); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// authenticate resolves the bearer access token or writes a 401.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return session.Claims{}, false
	}

	claims, err := h.sessions.Authenticate(token, time.Now().UTC())
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("access").Inc()
		writeError(w, http.StatusUnauthorized, "invalid or expired access token")
		return session.Claims{}, false
	}
	return claims, true
}
