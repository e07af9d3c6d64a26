package session

import (
	"strings"
	"time"
)

// Service combines the Registry with a TokenCodec to implement the session
// flows used by login, refresh, logout and request authentication.
type Service struct {
	cfg      Config
	registry *Registry
	tokens   TokenCodec
}

// Issued is the result of issuing or refreshing a session.
type Issued struct {
	UserID       string
	SessionID    string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// NewService constructs a Service over an existing registry and codec.
func NewService(cfg Config, registry *Registry, tokens TokenCodec) *Service {
	def := DefaultConfig()
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = def.AccessTokenTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	return &Service{cfg: cfg, registry: registry, tokens: tokens}
}

// Registry returns the backing registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// IssueSession registers a new session for userID and mints its token pair.
func (s *Service) IssueSession(userID string, now time.Time) (Issued, error) {
	sessionID, err := s.registry.RegisterSession(userID, "")
	if err != nil {
		return Issued{}, err
	}

	issued, err := s.mint(strings.TrimSpace(userID), sessionID, now)
	if err != nil {
		// Do not leave a session nobody holds a token for.
		s.registry.RevokeSession(userID, sessionID)
		return Issued{}, err
	}
	return issued, nil
}

// Refresh exchanges a refresh token for a new token pair on the same session.
//
// The session must be live and not revoked. Re-registering the same ID extends
// its expiry. If a concurrent revoke wins the race, the registry hands back a
// different ID; that replacement is revoked and the refresh fails.
func (s *Service) Refresh(refreshToken string, now time.Time) (Issued, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh, now)
	if err != nil {
		return Issued{}, ErrSessionInvalid
	}
	if s.registry.IsDenied(claims.SessionID) || !s.registry.ValidateSession(claims.UserID, claims.SessionID) {
		return Issued{}, ErrSessionInvalid
	}

	sessionID, err := s.registry.RegisterSession(claims.UserID, claims.SessionID)
	if err != nil {
		return Issued{}, ErrSessionInvalid
	}
	if sessionID != claims.SessionID {
		s.registry.RevokeSession(claims.UserID, sessionID)
		return Issued{}, ErrSessionInvalid
	}

	return s.mint(claims.UserID, sessionID, now)
}

// ValidateAccessToken verifies an access token and then asks the registry
// whether its session is still usable. Every failure is ErrSessionInvalid.
func (s *Service) ValidateAccessToken(token string, now time.Time) (Claims, error) {
	claims, err := s.tokens.Verify(token, TokenAccess, now)
	if err != nil {
		return Claims{}, ErrSessionInvalid
	}
	if s.registry.IsDenied(claims.SessionID) {
		return Claims{}, ErrSessionInvalid
	}
	if !s.registry.ValidateSession(claims.UserID, claims.SessionID) {
		return Claims{}, ErrSessionInvalid
	}
	return claims, nil
}

// Logout revokes a single session.
func (s *Service) Logout(userID, sessionID string) bool {
	return s.registry.RevokeSession(userID, sessionID)
}

// LogoutAll revokes every session of userID and returns how many were live.
func (s *Service) LogoutAll(userID string) int {
	return s.registry.RevokeAllSessions(userID)
}

// ActiveSessions lists the live sessions of userID.
func (s *Service) ActiveSessions(userID string) []SessionSummary {
	return s.registry.ActiveSessions(userID)
}

// OwnsSession reports whether sessionID is a live session of userID.
func (s *Service) OwnsSession(userID, sessionID string) bool {
	return s.registry.ValidateSession(userID, sessionID)
}

func (s *Service) mint(userID, sessionID string, now time.Time) (Issued, error) {
	accessToken, accessExp, err := s.tokens.Issue(TokenAccess, userID, sessionID, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return Issued{}, err
	}
	refreshToken, refreshExp, err := s.tokens.Issue(TokenRefresh, userID, sessionID, now, s.cfg.SessionTTL)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		UserID:       userID,
		SessionID:    sessionID,
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
	}, nil
}
