// Package authapi serves cronapp's account and session HTTP endpoints.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"cronapp/cmd/identity"
	"cronapp/cmd/internal/auth/session"
	"cronapp/cmd/security/password"
)

// Handler wires HTTP auth endpoints to identity/session services.
type Handler struct {
	log *slog.Logger
	cfg Config

	identity  identity.Store
	sessions  *session.Service
	passwords password.Config

	emailSender EmailSender

	loginLimiter    *windowLimiter
	recoveryLimiter *windowLimiter

	now       func() time.Time
	dummyHash string
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithEmailSender overrides the default no-op email sender.
func WithEmailSender(sender EmailSender) HandlerOption {
	return func(h *Handler) {
		if h == nil || sender == nil {
			return
		}
		h.emailSender = sender
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, store identity.Store, sessions *session.Service, passwords password.Config, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if store == nil {
		return nil, errors.New("auth: nil identity store")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:             log,
		cfg:             cfg,
		identity:        store,
		sessions:        sessions,
		passwords:       passwords,
		emailSender:     NoopEmailSender{},
		loginLimiter:    newWindowLimiter(cfg.LoginMax, cfg.LoginWindow),
		recoveryLimiter: newWindowLimiter(cfg.RecoveryMax, cfg.RecoveryWindow),
		now:             func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := passwords.Hash("Dummy-Password-For-Timing-0"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/api/auth/google", h.handleGoogle)
	mux.HandleFunc("/api/auth/auth-methods", h.handleAuthMethods)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/validate", h.handleValidate)
	mux.HandleFunc("/api/auth/sessions", h.handleSessions)
	mux.HandleFunc("/api/auth/sessions/{id}", h.handleSessionDelete)
	mux.HandleFunc("/api/settings", h.handleSettings)
	mux.HandleFunc("/api/onboarding", h.handleOnboardingSave)
	mux.HandleFunc("/api/onboarding/status", h.handleOnboardingStatus)
	mux.HandleFunc("/api/recover/request", h.handleRecoverRequest)
	mux.HandleFunc("/api/recover/reset/{token}", h.handleRecoverReset)
}

// SessionService returns the underlying session service.
func (h *Handler) SessionService() *session.Service {
	if h == nil {
		return nil
	}
	return h.sessions
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	birth, ok := parseBirthDate(req.BirthDate)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "birth_date must be YYYY-MM-DD")
		return
	}
	if err := h.passwords.Validate(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	u, err := h.identity.CreateUser(ctx, identity.CreateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: birth,
		Password:  req.Password,
		Now:       now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	issued, err := h.sessions.IssueSession(u.ID, now)
	if err != nil {
		h.log.Error("auth.register.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditRegister(ctx, u.ID, issued.SessionID, ip, ua)
	writeJSON(w, http.StatusCreated, authResponse{
		User:    toUserResponse(u),
		Session: toSessionResponse(issued),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// Throttle before touching the body or the store.
	if !h.throttle(w, h.loginLimiter, "login", ip, now) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	userAuth, err := h.identity.GetUserAuthByEmail(ctx, email)
	if err != nil || userAuth.PasswordHash == "" {
		if err != nil && !identity.IsNotFound(err) && !identity.IsInvalidInput(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_, _ = h.passwords.Verify(h.dummyHash, req.Password)
		}
		reason := "not_found"
		if err == nil {
			reason = "no_password"
		}
		h.auditLoginFailed(ctx, userAuth.User.ID, ip, ua, reason)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	okPw, err := h.passwords.Verify(userAuth.PasswordHash, req.Password)
	if err != nil || !okPw {
		h.auditLoginFailed(ctx, userAuth.User.ID, ip, ua, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	if h.passwords.NeedsRehash(userAuth.PasswordHash) {
		if err := h.identity.UpdatePassword(ctx, userAuth.User.ID, req.Password, now); err != nil {
			h.log.Warn("auth.login.rehash.fail", "err", err, "user_id", userAuth.User.ID)
		}
	}

	issued, err := h.sessions.IssueSession(userAuth.User.ID, now)
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLoginSuccess(ctx, userAuth.User.ID, issued.SessionID, ip, ua)
	writeJSON(w, http.StatusOK, authResponse{
		User:    toUserResponse(userAuth.User),
		Session: toSessionResponse(issued),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	refreshToken := strings.TrimSpace(req.RefreshToken)
	if refreshToken == "" {
		refreshToken = bearerToken(r)
	}
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	issued, err := h.sessions.Refresh(refreshToken, h.now())
	if err != nil {
		writeSessionInvalid(w)
		return
	}

	h.auditRefresh(r.Context(), issued.UserID, issued.SessionID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))

	writeJSON(w, http.StatusOK, refreshResponse{Session: toSessionResponse(issued)})
}

func (h *Handler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if !h.cfg.GoogleEnabled() {
		writeError(w, http.StatusNotImplemented, "google_auth_unavailable", "google sign-in is not configured")
		return
	}

	var req googleRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.GoogleID) == "" || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and google_id are required")
		return
	}

	ctx := r.Context()
	now := h.now()

	u, created, err := h.identity.GetOrCreateGoogleUser(ctx, identity.GoogleUserInput{
		GoogleID:  req.GoogleID,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Now:       now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "google_conflict", "email is linked to another google account")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		default:
			h.log.Error("auth.google.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	issued, err := h.sessions.IssueSession(u.ID, now)
	if err != nil {
		h.log.Error("auth.google.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditGoogleLogin(ctx, u.ID, issued.SessionID, created, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	writeJSON(w, http.StatusOK, googleResponse{
		User:    toUserResponse(u),
		Session: toSessionResponse(issued),
		Created: created,
	})
}

func (h *Handler) handleAuthMethods(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	resp := authMethodsResponse{
		Password:            true,
		GoogleAuthAvailable: h.cfg.GoogleEnabled(),
	}
	if resp.GoogleAuthAvailable {
		resp.GoogleClientID = strings.TrimSpace(h.cfg.GoogleClientID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLogout always answers 200. Without a usable access token there is
// nothing to revoke and revoked is 0. The caller's own session always ends;
// a body session_id additionally ends that session when the caller owns it.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var req logoutRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	claims, err := h.sessions.ValidateAccessToken(bearerToken(r), h.now())
	if err != nil {
		writeJSON(w, http.StatusOK, logoutResponse{Revoked: 0})
		return
	}

	revoked := 0
	if req.All {
		revoked = h.sessions.LogoutAll(claims.UserID)
	} else {
		if h.sessions.Logout(claims.UserID, claims.SessionID) {
			revoked++
		}
		extra := strings.TrimSpace(req.SessionID)
		if extra != "" && extra != claims.SessionID && h.sessions.OwnsSession(claims.UserID, extra) {
			if h.sessions.Logout(claims.UserID, extra) {
				revoked++
			}
		}
	}

	h.auditLogout(r.Context(), claims.UserID, claims.SessionID, revoked, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	writeJSON(w, http.StatusOK, logoutResponse{Revoked: revoked})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeMethodNotAllowed(w, "GET, POST")
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, ok := h.currentUser(w, r, claims)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid: true,
		User:  toUserResponse(u),
		Session: validateSession{
			SessionID: claims.SessionID,
			UserID:    claims.UserID,
		},
	})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	list := h.sessions.ActiveSessions(claims.UserID)
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: toSessionSummaries(list, claims.SessionID)})
}

func (h *Handler) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	sessionID := strings.TrimSpace(r.PathValue("id"))
	if sessionID == "" || !h.sessions.OwnsSession(claims.UserID, sessionID) {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
		return
	}

	revoked := 0
	if h.sessions.Logout(claims.UserID, sessionID) {
		revoked = 1
	}

	h.auditLogout(r.Context(), claims.UserID, sessionID, revoked, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	claims, err := h.sessions.ValidateAccessToken(bearerToken(r), h.now())
	if err != nil {
		writeSessionInvalid(w)
		return session.Claims{}, false
	}
	return claims, true
}

// currentUser loads the account behind claims. A deleted account makes the
// session invalid.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request, claims session.Claims) (identity.User, bool) {
	u, err := h.identity.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			writeSessionInvalid(w)
			return identity.User{}, false
		}
		h.log.Error("auth.user.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return identity.User{}, false
	}
	return u, true
}

func invalidMessage(err error) string {
	var opErr identity.OpError
	if errors.As(err, &opErr) && strings.TrimSpace(opErr.Msg) != "" {
		return opErr.Msg
	}
	return "invalid input"
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

// parseForwardedIP returns the left-most valid address, the original client
// as reported by the first proxy.
func parseForwardedIP(raw string) net.IP {
	for p := range strings.SplitSeq(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
