package authapi

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Audit events go to the structured log under a stable "audit" message so
// they can be routed separately from request logs.

func (h *Handler) auditRegister(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.register", userID, sessionID, ip, ua)
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID string, ip net.IP, ua string, reason string) {
	h.audit(ctx, "auth.login.failed", userID, "", ip, ua, slog.String("reason", reason))
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.login.success", userID, sessionID, ip, ua)
}

func (h *Handler) auditGoogleLogin(ctx context.Context, userID, sessionID string, created bool, ip net.IP, ua string) {
	h.audit(ctx, "auth.google.success", userID, sessionID, ip, ua, slog.Bool("created", created))
}

func (h *Handler) auditRefresh(ctx context.Context, userID, sessionID string, ip net.IP, ua string) {
	h.audit(ctx, "auth.refresh.success", userID, sessionID, ip, ua)
}

func (h *Handler) auditLogout(ctx context.Context, userID, sessionID string, revoked int, ip net.IP, ua string) {
	h.audit(ctx, "auth.logout", userID, sessionID, ip, ua, slog.Int("revoked", revoked))
}

func (h *Handler) auditProfileUpdated(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit(ctx, "account.profile.updated", userID, "", ip, ua)
}

func (h *Handler) auditOnboardingSaved(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit(ctx, "account.onboarding.saved", userID, "", ip, ua)
}

func (h *Handler) auditRecoveryRequested(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit(ctx, "account.recovery.requested", userID, "", ip, ua)
}

func (h *Handler) auditPasswordReset(ctx context.Context, userID string, revoked int, ip net.IP, ua string) {
	h.audit(ctx, "account.password.reset", userID, "", ip, ua, slog.Int("revoked", revoked))
}

func (h *Handler) auditRateLimited(route string, ip net.IP, retryAfter time.Duration) {
	h.audit(context.Background(), "auth.rate_limited", "", "", ip, "",
		slog.String("route", route),
		slog.Int64("retry_after_s", int64(retryAfter.Seconds())),
	)
}

func (h *Handler) audit(ctx context.Context, action, userID, sessionID string, ip net.IP, ua string, extra ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}

	attrs := make([]slog.Attr, 0, 5+len(extra))
	attrs = append(attrs, slog.String("action", action))
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	if sessionID != "" {
		attrs = append(attrs, slog.String("session_id", sessionID))
	}
	if ip != nil {
		attrs = append(attrs, slog.String("ip", ip.String()))
	}
	if ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	attrs = append(attrs, extra...)

	h.log.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}
