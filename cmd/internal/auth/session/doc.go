// Package session implements cronapp's session lifecycle.
//
// The Registry is the authoritative in-memory record of which sessions are
// usable. It tracks active sessions per user, keeps a denylist of explicitly
// revoked session IDs until every token that could reference them has
// expired, and keeps a bounded activity log for diagnostics.
//
// Access and refresh tokens are HS256 JWTs that carry the session ID as a
// claim. A token is only a reference to a session: revoking the session
// invalidates every token that points at it, whatever the token's own expiry.
//
// Transport (HTTP) integration lives in cmd/internal/auth/api.
package session
