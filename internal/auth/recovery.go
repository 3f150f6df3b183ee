package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultRecoveryCodeCount is the number of codes issued per setup
const DefaultRecoveryCodeCount = 10

// RecoveryCodeSet issues and consumes single-use recovery codes.
// Codes are 8 lowercase hex characters (32 random bits each).
type RecoveryCodeSet struct {
	Count int
}

// NewRecoveryCodeSet creates a RecoveryCodeSet issuing count codes (DefaultRecoveryCodeCount if <= 0)
func NewRecoveryCodeSet(count int) *RecoveryCodeSet {
	if count <= 0 {
		count = DefaultRecoveryCodeCount
	}
	return &RecoveryCodeSet{Count: count}
}

// Generate returns Count fresh codes
func (s *RecoveryCodeSet) Generate() ([]string, error) {
	codes := make([]string, s.Count)
	buf := make([]byte, 4)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		codes[i] = hex.EncodeToString(buf)
	}
	return codes, nil
}

// Consume looks for candidate in codes, ignoring case and surrounding whitespace.
// On a match it returns the code as stored and the remaining codes.
func (s *RecoveryCodeSet) Consume(codes []string, candidate string) (string, []string, bool) {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return "", codes, false
	}

	idx := -1
	for i, code := range codes {
		if subtle.ConstantTimeCompare([]byte(strings.ToLower(code)), []byte(candidate)) == 1 && idx == -1 {
			idx = i
		}
	}
	if idx == -1 {
		return "", codes, false
	}

	remaining := make([]string, 0, len(codes)-1)
	remaining = append(remaining, codes[:idx]...)
	remaining = append(remaining, codes[idx+1:]...)
	return codes[idx], remaining, true
}
