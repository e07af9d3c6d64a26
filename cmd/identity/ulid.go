package identity

import (
	"time"

	"cronapp/cmd/identity/ids"
)

// NewULID returns a new ULID (26-char string) for now.
func NewULID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
