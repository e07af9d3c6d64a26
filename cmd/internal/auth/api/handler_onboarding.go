package authapi

import (
	"net/http"
	"strings"

	"cronapp/cmd/identity"
)

func (h *Handler) handleOnboardingSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	var req onboardingRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	ob, err := h.identity.SaveOnboarding(ctx, claims.UserID, req, h.now())
	if err != nil {
		switch {
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
		case identity.IsNotFound(err):
			writeSessionInvalid(w)
		default:
			h.log.Error("account.onboarding.save.fail", "err", err, "user_id", claims.UserID)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.auditOnboardingSaved(ctx, claims.UserID, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	writeJSON(w, http.StatusOK, toOnboardingStatus(ob))
}

// handleOnboardingStatus reports has_completed_onboarding=false until the
// questionnaire has been saved once.
func (h *Handler) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	ob, err := h.identity.GetOnboarding(r.Context(), claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeJSON(w, http.StatusOK, onboardingStatusResponse{})
			return
		}
		h.log.Error("account.onboarding.get.fail", "err", err, "user_id", claims.UserID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toOnboardingStatus(ob))
}
