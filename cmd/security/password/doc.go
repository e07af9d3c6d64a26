// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes use the PHC string layout ($argon2id$v=19$m=..,t=..,p=..$salt$key).
// Verify treats the stored string as untrusted and refuses parameters far
// above the configured cost.
package password
