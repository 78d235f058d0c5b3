package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationChallenge(t *testing.T) {
	msg, err := RegistrationChallenge("a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", msg)

	_, err = RegistrationChallenge("   ")
	assert.ErrorIs(t, err, ErrEmailRequired)
}

func TestReturningChallengeIsFresh(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		// Same instant on purpose: the nonce alone must keep messages apart.
		msg, err := ReturningChallenge(now)
		require.NoError(t, err)
		_, dup := seen[msg]
		require.False(t, dup, "challenge repeated: %s", msg)
		seen[msg] = struct{}{}
		assert.True(t, IsReturningChallenge(msg))
	}

	later, err := ReturningChallenge(now.Add(time.Second))
	require.NoError(t, err)
	assert.Contains(t, later, "2024-03-01T12:00:01Z")
	assert.NotEqual(t, "a@b.com", later)
}

func TestShortKey(t *testing.T) {
	assert.Equal(t, "02ab...ef01", ShortKey("02abcdef0123456789abcdef01"))
	assert.Equal(t, "short", ShortKey("short"))
}

func TestNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"cancelled", ErrSignCancelled, "Sign cancelled"},
		{"invalid signature", fmt.Errorf("verify: %w", ErrSignatureInvalid), "Error: Could not verify the signature"},
		{"wallet failure", &WalletCommunicationError{Op: "signMessage", Err: errors.New("extension crashed")}, "Error: extension crashed"},
		{"rejected with context", &GatewayRejectedError{Op: "register", Message: "email taken"}, "Sign in rejected: email taken"},
		{"rejected bare", &GatewayRejectedError{Op: "register"}, "Sign in rejected"},
		{"malformed payload is silent", ErrMalformedEventPayload, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Notice(tt.err))
		})
	}
}

func TestIsFatalToSession(t *testing.T) {
	assert.True(t, IsFatalToSession(fmt.Errorf("sign in: %w", ErrSessionInvalidated)))
	assert.False(t, IsFatalToSession(ErrSignCancelled))
	assert.False(t, IsFatalToSession(&GatewayRejectedError{Op: "login"}))
}
