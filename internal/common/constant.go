package common

const (
	// SessionCookieName is the cookie carrying the opaque session token.
	SessionCookieName = "token"

	// CSRFHeaderName is the request header carrying the per-session CSRF secret.
	CSRFHeaderName = "csrf-token"

	// TokenSize is the number of random bytes behind every session token and
	// CSRF secret. Hex encoding doubles the printable length.
	TokenSize = 32
)
