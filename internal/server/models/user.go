// Package models defines server-side data models persisted by the repositories.
package models

import "time"

// User is an account. PasswordHash is a bcrypt hash, never the plaintext.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
