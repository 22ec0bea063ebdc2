package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/sessionguard/internal/common"
)

// MinPasswordLength is the shortest accepted password, in bytes.
const MinPasswordLength = 8

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// maxPasswordLength is bcrypt's input limit; longer inputs are rejected
// rather than silently truncated.
const maxPasswordLength = 72

// Hasher hashes and verifies passwords with bcrypt. A fresh random salt is
// generated by bcrypt on every Hash call.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given cost. Out-of-range costs are an
// error; zero selects DefaultCost.
func NewHasher(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	return &Hasher{cost: cost}, nil
}

// ValidatePassword checks the password shape without hashing it.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > maxPasswordLength {
		return common.NewValidationError("password")
	}
	return nil
}

// Hash returns a bcrypt hash of password. It fails with a validation error
// when the password is too short or too long.
func (h *Hasher) Hash(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Verify reports whether password matches hash. Mismatches and malformed
// hashes both yield false.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsHash reports whether v is a bcrypt hash rather than a plaintext value.
func IsHash(v string) bool {
	_, err := bcrypt.Cost([]byte(v))
	return err == nil
}

// NeedsRehash reports whether hash was produced with a cost lower than the
// hasher's current one.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err == nil && cost < h.cost
}
