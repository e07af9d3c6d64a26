package authapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cronapp/cmd/identity"
)

const recoverAccepted = "if the account exists, a reset link has been sent"

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleSettingsGet(w, r)
	case http.MethodPut:
		h.handleSettingsPut(w, r)
	default:
		writeMethodNotAllowed(w, "GET, PUT")
	}
}

func (h *Handler) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}
	u, ok := h.currentUser(w, r, claims)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{User: toUserResponse(u)})
}

// handleSettingsPut updates the profile. Omitted or blank fields keep their
// current value; an explicit empty birth_date clears it.
func (h *Handler) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	current, ok := h.currentUser(w, r, claims)
	if !ok {
		return
	}

	in := identity.ProfileInput{
		FirstName: firstNonBlank(req.FirstName, current.FirstName),
		LastName:  firstNonBlank(req.LastName, current.LastName),
		Email:     firstNonBlank(req.Email, current.Email),
		BirthDate: current.BirthDate,
		Now:       h.now(),
	}
	if req.BirthDate != nil {
		birth, ok := parseBirthDate(req.BirthDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "birth_date must be YYYY-MM-DD")
			return
		}
		in.BirthDate = birth
	}

	ctx := r.Context()
	u, err := h.identity.UpdateProfile(ctx, claims.UserID, in)
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "email already registered")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		case identity.IsNotFound(err):
			writeSessionInvalid(w)
		default:
			h.log.Error("account.settings.update.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditProfileUpdated(ctx, u.ID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	writeJSON(w, http.StatusOK, settingsResponse{User: toUserResponse(u)})
}

// handleRecoverRequest answers 202 whether or not the email is known.
func (h *Handler) handleRecoverRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)

	if !h.throttle(w, h.recoveryLimiter, "recover.request", ip, now) {
		return
	}

	var req recoverRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	accepted := recoverResponse{Message: recoverAccepted}
	if !identity.ValidEmail(req.Email) {
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}

	account, err := h.identity.GetUserAuthByEmail(ctx, req.Email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("account.recover.lookup.fail", "err", err)
		}
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}

	plain, err := h.identity.CreateResetToken(ctx, account.User.ID, h.cfg.ResetTokenTTL, now)
	if err != nil {
		h.log.Error("account.recover.token.fail", "err", err, "user_id", account.User.ID)
		writeJSON(w, http.StatusAccepted, accepted)
		return
	}

	msg := PasswordResetMessage{
		UserID:    account.User.ID,
		Email:     account.User.Email,
		FirstName: account.User.FirstName,
		ResetURL:  fmt.Sprintf("%s/recover/reset/%s", h.cfg.FrontendURL, url.PathEscape(plain)),
		ExpiresAt: now.Add(h.cfg.ResetTokenTTL),
	}
	if err := h.emailSender.SendPasswordReset(ctx, msg); err != nil {
		h.log.Error("account.recover.email.fail", "err", err, "user_id", account.User.ID)
	}

	h.auditRecoveryRequested(ctx, account.User.ID, ip, strings.TrimSpace(r.UserAgent()))
	writeJSON(w, http.StatusAccepted, accepted)
}

// handleRecoverReset consumes a reset token, sets the new password and ends
// every session of the account.
func (h *Handler) handleRecoverReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)

	if !h.throttle(w, h.recoveryLimiter, "recover.reset", ip, now) {
		return
	}

	var req resetRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	// Check the policy first so a rejected password does not burn the token.
	if err := h.passwords.Validate(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	userID, err := h.identity.ConsumeResetToken(ctx, r.PathValue("token"), now)
	if err != nil {
		if identity.IsNotActive(err) || identity.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, "invalid_reset_token", "invalid or expired reset token")
			return
		}
		h.log.Error("account.reset.consume.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if err := h.identity.UpdatePassword(ctx, userID, req.NewPassword, now); err != nil {
		h.log.Error("account.reset.update.fail", "err", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	revoked := h.sessions.LogoutAll(userID)

	h.auditPasswordReset(ctx, userID, revoked, ip, strings.TrimSpace(r.UserAgent()))
	writeJSON(w, http.StatusOK, resetResponse{RevokedSessions: revoked})
}

func firstNonBlank(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
