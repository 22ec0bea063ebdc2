package client

import (
	"context"
	"time"
)

// Client is the SessionGuard account API as seen from the command line.
// Passwords are passed as byte slices so callers can wipe them afterwards.
type Client interface {
	Register(ctx context.Context, email string, password []byte) error
	Login(ctx context.Context, email string, password []byte) error
	Me(ctx context.Context) (*User, error)
	Logout(ctx context.Context) error
	DeleteAccount(ctx context.Context, password []byte, email string) error
	ChangePassword(ctx context.Context, current, next []byte) (int64, error)
	Sessions(ctx context.Context) ([]Session, error)
	LoggedIn() bool
}

type User struct {
	Email string `json:"email"`
}

// Session is one row of the session listing. ID is a fingerprint, never the
// token itself.
type Session struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Current   bool       `json:"current"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
