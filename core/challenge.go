package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const returningChallengePrefix = "Please verify with your signature."

// RegistrationChallenge is the message a first-time user signs: the e-mail itself.
func RegistrationChallenge(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrEmailRequired
	}
	return email, nil
}

// ReturningChallenge builds a fresh timestamped challenge for an already registered key.
// The random nonce keeps two challenges distinct even within one clock tick.
func ReturningChallenge(now time.Time) (string, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return fmt.Sprintf("%s Date: %s Nonce: %s",
		returningChallengePrefix,
		now.UTC().Format(time.RFC3339Nano),
		hex.EncodeToString(nonce),
	), nil
}

// IsReturningChallenge reports whether msg was produced by ReturningChallenge.
func IsReturningChallenge(msg string) bool {
	return strings.HasPrefix(msg, returningChallengePrefix+" Date: ")
}

// ShortKey renders a public key as "abcd...wxyz" for display.
func ShortKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}
