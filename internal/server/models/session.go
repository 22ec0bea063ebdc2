package models

import "time"

// SessionStatus is the lifecycle state of a session. The only transition is
// valid -> expired.
type SessionStatus string

const (
	SessionValid   SessionStatus = "valid"
	SessionExpired SessionStatus = "expired"
)

// Session is a login session identified by its opaque Token.
type Session struct {
	Token      string
	UserID     string
	CSRFSecret string
	Status     SessionStatus
	CreatedAt  time.Time
	// ExpiresAt is zero when the session has no wall-clock horizon.
	ExpiresAt time.Time
}

// PastHorizon reports whether the session has an expiry horizon that now has
// reached.
func (s *Session) PastHorizon(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Fingerprint is a short, non-secret handle for a session used in listings.
func (s *Session) Fingerprint() string {
	if len(s.Token) < 8 {
		return s.Token
	}
	return s.Token[:8]
}
