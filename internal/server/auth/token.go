package auth

import (
	"fmt"

	"github.com/dmitrijs2005/sessionguard/internal/common"
)

// TokenGenerator produces opaque random tokens.
type TokenGenerator interface {
	Generate() (string, error)
}

// RandomTokens draws common.TokenSize bytes from crypto/rand per token and
// hex encodes them, giving fixed-length 64 character strings.
type RandomTokens struct{}

func (RandomTokens) Generate() (string, error) {
	t, err := common.MakeRandHexString(common.TokenSize)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return t, nil
}
