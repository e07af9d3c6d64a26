package identity

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxEmailLen = 254
	maxNameLen  = 100
)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName trims s and collapses inner whitespace runs to one space.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidEmail reports whether s is a bare address ("a@b.c") without a display name.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxEmailLen {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func validName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n > 0 && n <= maxNameLen
}

// validBirthDate rejects dates in the future and before 1900.
func validBirthDate(d *time.Time, now time.Time) bool {
	if d == nil {
		return true
	}
	return !d.After(now) && d.Year() >= 1900
}

// dateOnly drops the clock part of d, keeping the calendar day in UTC.
func dateOnly(d *time.Time) *time.Time {
	if d == nil {
		return nil
	}
	y, m, day := d.Date()
	out := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &out
}
