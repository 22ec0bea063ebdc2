package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString reads size bytes from crypto/rand and returns them hex
// encoded, so the result is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray zeroes b in place. It is used on password buffers read from
// the terminal once they are no longer needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
