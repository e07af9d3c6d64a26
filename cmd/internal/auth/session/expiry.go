package session

import "time"

// live reports whether a record with the given deadline is still in force at now.
// A deadline is inclusive: a session expiring at T is valid at T and invalid after.
//
// It is the only expiry rule in this package. The read path (ValidateSession,
// IsDenied, ActiveSessions) and the background sweep both call it, for active
// sessions and for denylist entries alike.
func live(now, deadline time.Time) bool {
	return !now.After(deadline)
}
