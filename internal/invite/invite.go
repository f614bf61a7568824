// Package invite generates workspace join codes.
package invite

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeLength is the length of every workspace invite code.
const CodeLength = 6

// Generate returns a random code of n characters drawn uniformly from the
// alphanumeric alphabet. Bytes outside the largest multiple of len(alphabet)
// are rejected so no character is favored.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invite code length must be positive, got %d", n)
	}

	// 62*4 = 248 is the largest multiple of len(alphabet) below 256.
	limit := byte(256 - 256%len(alphabet))

	code := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(code) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, alphabet[int(b)%len(alphabet)])
			if len(code) == n {
				break
			}
		}
	}
	return string(code), nil
}
