package authapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxLimiterKeys bounds the limiter map; past it, idle keys are pruned
// on the next Allow.
const maxLimiterKeys = 10_000

// windowLimiter is a keyed sliding-window limiter. Every attempt counts,
// allowed or not, so a client hammering a route stays blocked.
type windowLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &windowLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// Allow records an attempt for key at now. When blocked it returns how long
// until the oldest retained attempt leaves the window.
func (l *windowLimiter) Allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) > maxLimiterKeys {
		l.pruneLocked(now)
	}

	cut := now.Add(-l.window)
	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}

	blocked, retry := evaluateWindowThrottle(now, kept, l.limit, l.window)
	kept = append(kept, now)
	// Only the newest limit attempts can decide the next call.
	if len(kept) > l.limit {
		kept = append(kept[:0], kept[len(kept)-l.limit:]...)
	}
	l.events[key] = kept
	if blocked {
		return false, retry
	}
	return true, 0
}

func (l *windowLimiter) pruneLocked(now time.Time) {
	cut := now.Add(-l.window)
	for key, evs := range l.events {
		if len(evs) == 0 || !evs[len(evs)-1].After(cut) {
			delete(l.events, key)
		}
	}
}

// evaluateWindowThrottle reports whether limit or more events fall inside the
// window ending at now, and if so how long until the earliest of them expires.
func evaluateWindowThrottle(now time.Time, events []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return false, 0
	}

	cut := now.Add(-window)
	count := 0
	var earliest time.Time
	for _, t := range events {
		if !t.After(cut) {
			continue
		}
		count++
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if count < limit {
		return false, 0
	}

	retry := earliest.Add(window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return true, retry
}

func (h *Handler) throttle(w http.ResponseWriter, l *windowLimiter, route string, ip net.IP, now time.Time) bool {
	key := route + "|unknown"
	if ip != nil {
		key = route + "|" + ip.String()
	}
	ok, retry := l.Allow(key, now)
	if ok {
		return true
	}
	h.auditRateLimited(route, ip, retry)
	writeRateLimited(w, retry)
	return false
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
