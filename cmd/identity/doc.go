// Package identity holds cronapp's account model and its persistence.
//
// Users are keyed by ULID and looked up by normalized email. Passwords are
// hashed through security/password and reset tokens through security/token;
// neither plain value is ever stored.
//
// Two Store implementations exist: MemoryStore for development and tests,
// and PostgresStore for production.
package identity
