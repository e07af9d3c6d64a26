package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxIDAttempts bounds how many times RegisterSession asks the configured ID
// generator for a replacement before falling back to a fresh UUID.
const maxIDAttempts = 8

// SessionSummary describes one active session for user-facing listings.
type SessionSummary struct {
	SessionID string
	CreatedAt time.Time
	ExpiresAt time.Time
	// Remaining is the time left until ExpiresAt, measured when the summary was built.
	Remaining time.Duration
}

// Stats is a point-in-time view of the registry size.
type Stats struct {
	Users          int
	ActiveSessions int
	DeniedSessions int
}

// SweepResult counts the records removed by one sweep.
type SweepResult struct {
	Sessions int
	Denied   int
}

type record struct {
	createdAt time.Time
	expiresAt time.Time
}

// Registry is the authoritative, concurrency-safe record of usable sessions.
//
// All state (active sessions, owner index, denylist, activity log) sits behind
// one mutex, so a revoke that adds a denylist mark and drops the active entry
// is observed as a single step. No I/O happens while the lock is held.
//
// Construct it with NewRegistry; the zero value is not usable.
type Registry struct {
	mu       sync.Mutex
	active   map[string]map[string]record // user ID -> session ID -> record
	owners   map[string]string            // session ID -> user ID
	denied   map[string]time.Time         // session ID -> revoked until
	count    int
	activity *activityLog

	sessionTTL    time.Duration
	denyTTL       time.Duration
	sweepInterval time.Duration

	now     func() time.Time
	newID   func() string
	log     *slog.Logger
	metrics *Metrics

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RegistryOption configures optional Registry dependencies.
type RegistryOption func(*Registry)

// WithClock overrides the time source (tests use a fake clock).
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used for sweep and revocation events.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithIDGenerator overrides the session ID generator.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRegistry builds an empty Registry. Non-positive lifetimes in cfg fall back
// to DefaultConfig values. The background sweep is not started; call Start.
func NewRegistry(cfg Config, opts ...RegistryOption) *Registry {
	def := DefaultConfig()
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = def.AccessTokenTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	r := &Registry{
		active:        make(map[string]map[string]record),
		owners:        make(map[string]string),
		denied:        make(map[string]time.Time),
		activity:      newActivityLog(cfg.ActivityLogSize),
		sessionTTL:    cfg.SessionTTL,
		denyTTL:       cfg.DenyTTL(),
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
		newID:         GenerateSessionID,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// GenerateSessionID returns a random UUID v4 (122 bits of entropy).
func GenerateSessionID() string {
	return uuid.NewString()
}

// GenerateSessionID returns a new ID from the registry's generator. It has no side effects.
func (r *Registry) GenerateSessionID() string {
	return r.newID()
}

// RegisterSession creates or extends an active session for userID and returns
// its ID.
//
// An empty sessionID asks the registry to generate one. A sessionID that is on
// the denylist, or that is live for a different user, is replaced with a fresh
// ID. Registering an ID the user already holds extends its expiry; token
// refresh relies on this to keep the same session alive.
func (r *Registry) RegisterSession(userID, sessionID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidInput
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = r.newID()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for attempt := 0; r.unusableLocked(userID, sessionID, now); attempt++ {
		if attempt < maxIDAttempts {
			sessionID = r.newID()
		} else {
			sessionID = uuid.NewString()
		}
	}

	sessions := r.active[userID]
	if sessions == nil {
		sessions = make(map[string]record)
		r.active[userID] = sessions
	}

	expiresAt := now.Add(r.sessionTTL)
	if rec, ok := sessions[sessionID]; ok && live(now, rec.expiresAt) {
		rec.expiresAt = expiresAt
		sessions[sessionID] = rec
		r.recordLocked(now, ActionSessionRefreshed, userID, sessionID, "")
		r.metrics.incRefreshed()
		return sessionID, nil
	} else if !ok {
		r.count++
	}

	sessions[sessionID] = record{createdAt: now, expiresAt: expiresAt}
	r.owners[sessionID] = userID
	r.recordLocked(now, ActionSessionCreated, userID, sessionID, "")
	r.metrics.incRegistered()
	r.metrics.setSizes(r.count, len(r.denied))
	return sessionID, nil
}

// ValidateSession reports whether sessionID is a live, non-revoked session of
// userID. The denylist is consulted first. An expired entry found here is
// removed. Missing input yields false.
func (r *Registry) ValidateSession(userID, sessionID string) bool {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" || sessionID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.deniedLocked(sessionID, now) {
		r.metrics.observeValidation(resultDenied)
		return false
	}

	rec, ok := r.active[userID][sessionID]
	if !ok {
		r.metrics.observeValidation(resultUnknown)
		return false
	}
	if !live(now, rec.expiresAt) {
		r.dropLocked(userID, sessionID)
		r.recordLocked(now, ActionSessionExpired, userID, sessionID, "observed on read")
		r.metrics.observeValidation(resultExpired)
		r.metrics.setSizes(r.count, len(r.denied))
		return false
	}

	r.metrics.observeValidation(resultValid)
	return true
}

// IsDenied reports whether sessionID is on the denylist and its retention
// deadline has not passed. A lapsed entry is removed.
func (r *Registry) IsDenied(sessionID string) bool {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deniedLocked(sessionID, r.now())
}

// RevokeSession denylists sessionID and removes it from the active table in
// one step. It returns false only for an empty sessionID; an unknown session
// is still denylisted.
//
// The active entry is removed from whichever user owns it. userID is used for
// the activity record and may be empty.
func (r *Registry) RevokeSession(userID, sessionID string) bool {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.deniedLocked(sessionID, now) {
		r.denied[sessionID] = now.Add(r.denyTTL)
		r.metrics.addRevoked(1)
	}
	if owner, ok := r.owners[sessionID]; ok {
		r.dropLocked(owner, sessionID)
		if userID == "" {
			userID = owner
		}
	}

	r.recordLocked(now, ActionSessionRevoked, userID, sessionID, "")
	r.metrics.setSizes(r.count, len(r.denied))
	r.log.Debug("session.revoke", "user_id", userID, "session_id", sessionID)
	return true
}

// RevokeAllSessions revokes every session registered for userID and returns
// how many of them were still live.
func (r *Registry) RevokeAllSessions(userID string) int {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sessions := r.active[userID]
	revoked := 0
	newlyDenied := 0
	for id, rec := range sessions {
		if live(now, rec.expiresAt) {
			revoked++
		}
		if !r.deniedLocked(id, now) {
			r.denied[id] = now.Add(r.denyTTL)
			newlyDenied++
		}
		delete(r.owners, id)
	}
	r.count -= len(sessions)
	delete(r.active, userID)

	r.recordLocked(now, ActionRevokedAll, userID, "", fmt.Sprintf("count=%d", revoked))
	r.metrics.addRevoked(newlyDenied)
	r.metrics.setSizes(r.count, len(r.denied))
	r.log.Debug("session.revoke_all", "user_id", userID, "count", revoked)
	return revoked
}

// ActiveSessions lists the live sessions of userID, oldest first, with their
// remaining lifetime. Expired entries encountered are removed.
func (r *Registry) ActiveSessions(userID string) []SessionSummary {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	sessions := r.active[userID]
	out := make([]SessionSummary, 0, len(sessions))
	dropped := 0
	for id, rec := range sessions {
		if !live(now, rec.expiresAt) {
			r.dropLocked(userID, id)
			r.recordLocked(now, ActionSessionExpired, userID, id, "observed on read")
			dropped++
			continue
		}
		if r.deniedLocked(id, now) {
			continue
		}
		out = append(out, SessionSummary{
			SessionID: id,
			CreatedAt: rec.createdAt,
			ExpiresAt: rec.expiresAt,
			Remaining: rec.expiresAt.Sub(now),
		})
	}

	if dropped > 0 {
		r.metrics.setSizes(r.count, len(r.denied))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// RecentActivity returns up to limit activity entries, newest first.
func (r *Registry) RecentActivity(limit int) []ActivityEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activity.recent(limit)
}

// Stats reports the current table sizes. Expired entries not yet purged are counted.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Users:          len(r.active),
		ActiveSessions: r.count,
		DeniedSessions: len(r.denied),
	}
}

// Sweep removes every expired active session and every lapsed denylist entry.
// It only reclaims memory; reads are correct without it.
func (r *Registry) Sweep() SweepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var res SweepResult
	for userID, sessions := range r.active {
		for id, rec := range sessions {
			if !live(now, rec.expiresAt) {
				r.dropLocked(userID, id)
				res.Sessions++
			}
		}
	}
	for id, until := range r.denied {
		if !live(now, until) {
			delete(r.denied, id)
			res.Denied++
		}
	}

	if res.Sessions > 0 || res.Denied > 0 {
		r.recordLocked(now, ActionSweep, "", "", fmt.Sprintf("sessions=%d denied=%d", res.Sessions, res.Denied))
	}
	r.metrics.addSwept(res.Sessions, res.Denied)
	r.metrics.setSizes(r.count, len(r.denied))
	return res
}

// Start launches the periodic sweep. It returns immediately; calling Start on
// a running registry is a no-op. The sweep stops when ctx is done or Stop is called.
func (r *Registry) Start(ctx context.Context) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done

	go r.sweepLoop(ctx, done)
	r.log.Info("session.sweep.start", "interval", r.sweepInterval.String())
}

// Stop halts the sweep started by Start and waits for it to exit.
// It is safe to call more than once, or without Start.
func (r *Registry) Stop() {
	r.lifeMu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.lifeMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Info("session.sweep.stop")
}

func (r *Registry) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := r.Sweep()
			if res.Sessions > 0 || res.Denied > 0 {
				r.log.Debug("session.sweep", "sessions", res.Sessions, "denied", res.Denied)
			}
		}
	}
}

// unusableLocked reports whether sessionID cannot be handed to userID: it is
// denylisted, or it is live for another user. A stale foreign entry is reclaimed.
func (r *Registry) unusableLocked(userID, sessionID string, now time.Time) bool {
	if r.deniedLocked(sessionID, now) {
		return true
	}
	owner, ok := r.owners[sessionID]
	if !ok || owner == userID {
		return false
	}
	if rec, ok := r.active[owner][sessionID]; ok && live(now, rec.expiresAt) {
		return true
	}
	r.dropLocked(owner, sessionID)
	r.metrics.setSizes(r.count, len(r.denied))
	return false
}

func (r *Registry) deniedLocked(sessionID string, now time.Time) bool {
	until, ok := r.denied[sessionID]
	if !ok {
		return false
	}
	if live(now, until) {
		return true
	}
	delete(r.denied, sessionID)
	r.recordLocked(now, ActionDenylistExpired, "", sessionID, "observed on read")
	r.metrics.setSizes(r.count, len(r.denied))
	return false
}

// dropLocked removes one active entry and keeps the owner index and count in step.
func (r *Registry) dropLocked(userID, sessionID string) {
	sessions, ok := r.active[userID]
	if !ok {
		return
	}
	if _, ok := sessions[sessionID]; !ok {
		return
	}
	delete(sessions, sessionID)
	r.count--
	if len(sessions) == 0 {
		delete(r.active, userID)
	}
	if r.owners[sessionID] == userID {
		delete(r.owners, sessionID)
	}
}

func (r *Registry) recordLocked(now time.Time, action, userID, sessionID, details string) {
	r.activity.add(ActivityEntry{
		At:        now,
		Action:    action,
		UserID:    userID,
		SessionID: sessionID,
		Details:   details,
	})
}
