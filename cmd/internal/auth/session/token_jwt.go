package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	// TokenAccess authorizes API requests.
	TokenAccess TokenType = "access"
	// TokenRefresh is exchanged for a new token pair on the same session.
	TokenRefresh TokenType = "refresh"
)

// Claims is the identity envelope carried by a verified token.
type Claims struct {
	UserID    string
	SessionID string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// TokenCodec signs and verifies bearer tokens. It knows nothing about the
// Registry; it only checks signature, issuer, type and time claims.
type TokenCodec interface {
	Issue(typ TokenType, userID, sessionID string, now time.Time, ttl time.Duration) (token string, exp time.Time, err error)
	Verify(token string, typ TokenType, now time.Time) (Claims, error)
}

type jwtClaims struct {
	SessionID string    `json:"session_id"`
	Type      TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// JWTCodec is a TokenCodec backed by HS256 JWTs.
type JWTCodec struct {
	issuer    string
	secret    []byte
	clockSkew time.Duration
}

// NewJWTCodec builds a JWTCodec from cfg. The secret must be at least
// MinJWTSecretBytes long.
func NewJWTCodec(cfg Config) (*JWTCodec, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if len(secret) < MinJWTSecretBytes {
		return nil, ErrConfig
	}
	return &JWTCodec{
		issuer:    cfg.Issuer,
		secret:    []byte(secret),
		clockSkew: cfg.ClockSkew,
	}, nil
}

// Issue signs a token of the given type for (userID, sessionID) valid for ttl.
func (c *JWTCodec) Issue(typ TokenType, userID, sessionID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" || ttl <= 0 {
		return "", time.Time{}, ErrInvalidInput
	}

	claims := jwtClaims{
		SessionID: sessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify parses token, checks its signature and time claims at now, and
// requires it to be of type typ. Every failure is ErrInvalidToken.
func (c *JWTCodec) Verify(token string, typ TokenType, now time.Time) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &jwtClaims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(c.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Type != typ || claims.Subject == "" || claims.SessionID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Type:      claims.Type,
		Issuer:    claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
