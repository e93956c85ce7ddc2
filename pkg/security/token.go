package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const minTokenBytes = 16

// GenerateToken returns a URL-safe opaque token with at least 128 bits of
// entropy. Token uniqueness comes from entropy alone, never from a counter, so
// concurrent callers cannot collide in practice.
func GenerateToken(numBytes int) (string, error) {
	if numBytes < minTokenBytes {
		numBytes = minTokenBytes
	}

	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
