package session

import "time"

// Activity actions recorded by the Registry.
const (
	ActionSessionCreated   = "session_created"
	ActionSessionRefreshed = "session_refreshed"
	ActionSessionRevoked   = "session_revoked"
	ActionRevokedAll       = "sessions_revoked_all"
	ActionSessionExpired   = "session_expired"
	ActionDenylistExpired  = "denylist_expired"
	ActionSweep            = "sweep"
)

// ActivityEntry is one diagnostic record. It is not authoritative state.
type ActivityEntry struct {
	At        time.Time
	Action    string
	UserID    string
	SessionID string
	Details   string
}

// activityLog is a fixed-size ring buffer; the oldest entry is overwritten first.
// It is not safe for concurrent use; the Registry guards it with its own mutex.
type activityLog struct {
	buf  []ActivityEntry
	next int
	full bool
}

func newActivityLog(size int) *activityLog {
	if size < 0 {
		size = 0
	}
	return &activityLog{buf: make([]ActivityEntry, size)}
}

func (l *activityLog) add(e ActivityEntry) {
	if len(l.buf) == 0 {
		return
	}
	l.buf[l.next] = e
	l.next++
	if l.next == len(l.buf) {
		l.next = 0
		l.full = true
	}
}

func (l *activityLog) len() int {
	if l.full {
		return len(l.buf)
	}
	return l.next
}

// recent returns up to limit entries, newest first. limit <= 0 means all.
func (l *activityLog) recent(limit int) []ActivityEntry {
	n := l.len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ActivityEntry, 0, limit)
	idx := l.next
	for i := 0; i < limit; i++ {
		idx--
		if idx < 0 {
			idx = len(l.buf) - 1
		}
		out = append(out, l.buf[idx])
	}
	return out
}
