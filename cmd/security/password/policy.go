package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password against the configured policy.
//
// Length is counted in runes. With RequireMixed the password needs at least
// one upper-case letter, one lower-case letter, one digit and one symbol.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RequireMixed && !hasAllClasses(password) {
		return ErrPasswordComplexity
	}
	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

func hasAllClasses(pw string) bool {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// commonPasswords are rejected regardless of case.
var commonPasswords = map[string]struct{}{
	"password":     {},
	"password123":  {},
	"password123!": {},
	"123456":       {},
	"123456789":    {},
	"qwerty":       {},
	"qwerty123":    {},
	"11111111":     {},
	"letmein":      {},
	"welcome1":     {},
}

func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	onlyDigits := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	if onlyDigits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	_, common := commonPasswords[strings.ToLower(s)]
	return common
}
