// Package token generates opaque one-time tokens and hashes them for storage.
//
// Plain tokens go to the user exactly once (for example in a password reset
// link); the server keeps only a 64-char hex digest. The digest is
// HMAC-SHA256 when CRONAPP_TOKEN_HMAC_KEY is set and plain SHA-256 otherwise.
// Deployments that require HMAC enforce it at startup through HMACKeyFromEnv.
package token
