package auth

import (
	"context"
	"crypto/subtle"

	"github.com/dmitrijs2005/sessionguard/internal/common"
)

// CheckCSRF compares the secret supplied with a mutating request against the
// one bound to the session in ctx. A context without a session is treated as
// unauthenticated; the guard only runs after the auth gate.
//
// The bound secret is never rotated here, whatever the outcome.
func CheckCSRF(ctx context.Context, supplied string) error {
	info, ok := SessionFromContext(ctx)
	if !ok {
		return common.ErrUnauthenticated
	}
	if supplied == "" || info.csrfSecret == "" {
		return common.ErrCSRFViolation
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(info.csrfSecret)) != 1 {
		return common.ErrCSRFViolation
	}
	return nil
}
