package service

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

func registeredSession(key, token string) core.Session {
	return core.Session{Token: token, UserID: "u1", ActivePublicKeyHex: key, AlreadyRegistered: true}
}

func TestFirstTimeRegistration(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.wallet.Connect()
	session, err := h.auth.SignIn(ctx, "a@b.com")
	require.NoError(t, err)
	h.auth.Wait()

	calls := h.gateway.registers()
	require.Len(t, calls, 1)
	assert.Equal(t, h.key(), calls[0].PublicKeyHex)
	assert.Equal(t, "a@b.com", calls[0].Message)
	assert.True(t, casper.VerifyMessage(h.key(), "a@b.com", calls[0].Signature))

	stored, ok := h.store.Read()
	require.True(t, ok)
	assert.Equal(t, session, stored)
	assert.Equal(t, "t1", stored.Token)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, h.key(), stored.ActivePublicKeyHex)
	assert.False(t, stored.AlreadyRegistered)
	assert.Equal(t, hex.EncodeToString(calls[0].Signature), stored.ProvidedSignature)
}

func TestReturningUserSignsTimestampedChallenge(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.login = func(string) (core.LoginResult, error) {
		return core.LoginResult{Success: true, UserID: "u1", Token: "t0", AlreadyRegistered: true}, nil
	}
	h.gateway.register = func(ports.RegisterRequest) (core.RegistrationResult, error) {
		return core.RegistrationResult{Success: true, UserID: "u1", Token: "t2", AlreadyRegistered: true}, nil
	}

	h.wallet.Connect()
	h.auth.Wait()

	stored, ok := h.store.Read()
	require.True(t, ok)
	assert.Equal(t, "t0", stored.Token)
	assert.True(t, stored.AlreadyRegistered)

	_, err := h.auth.SignIn(context.Background(), "")
	require.NoError(t, err)

	calls := h.gateway.registers()
	require.Len(t, calls, 1)
	assert.True(t, strings.HasPrefix(calls[0].Message, "Please verify with your signature. Date: "))
	assert.True(t, casper.VerifyMessage(h.key(), calls[0].Message, calls[0].Signature))

	stored, ok = h.store.Read()
	require.True(t, ok)
	assert.Equal(t, "t2", stored.Token)
	assert.True(t, stored.AlreadyRegistered)
}

func TestKeySwitchKeepsSessionWhenLoginFails(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.Commit(registeredSession(h.key(), "t1")))

	other, err := casper.GenerateKeyPair(casper.Ed25519)
	require.NoError(t, err)

	h.switchKey(other.PublicKeyHex())
	h.auth.Wait()

	stored, ok := h.store.Read()
	require.True(t, ok)
	assert.Equal(t, registeredSession(h.key(), "t1"), stored)
}

func TestKeySwitchReplacesSessionWholesale(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.Commit(core.Session{
		Token: "t1", UserID: "u1", ActivePublicKeyHex: h.key(), AlreadyRegistered: true, ProvidedSignature: "abcd",
	}))
	h.gateway.login = func(key string) (core.LoginResult, error) {
		return core.LoginResult{Success: true, UserID: "u2", Token: "t9", AlreadyRegistered: true}, nil
	}

	h.switchKey("02cd")
	h.auth.Wait()

	stored, ok := h.store.Read()
	require.True(t, ok)
	assert.Equal(t, core.Session{Token: "t9", UserID: "u2", ActivePublicKeyHex: "02cd", AlreadyRegistered: true}, stored)
}

func TestNoLoginAfterClose(t *testing.T) {
	h := newHarness(t, nil)
	h.gateway.login = func(key string) (core.LoginResult, error) {
		return core.LoginResult{Success: true, UserID: "u2", Token: "t9", AlreadyRegistered: true}, nil
	}

	// Passes that snapshotted the authenticator before Close keep delivering events.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				h.auth.handleEvent(core.WalletEvent{Kind: core.EventActiveKeyObserved, Key: "02cd"})
			}
		}()
	}
	h.auth.Close()
	started := h.gateway.logins()

	wg.Wait()
	h.auth.Wait()
	assert.Equal(t, started, h.gateway.logins())

	h.auth.handleEvent(core.WalletEvent{Kind: core.EventActiveKeyObserved, Key: "02ef"})
	h.auth.Wait()
	assert.Equal(t, started, h.gateway.logins())

	h.auth.Start()
	assert.Zero(t, h.bridge.Listeners())
}

func TestDisconnectClearsSession(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.store.Commit(registeredSession(h.key(), "t1")))

	h.dispatchDisconnected()
	_, ok := h.store.Read()
	assert.False(t, ok)

	// Idempotent.
	h.dispatchDisconnected()
	_, ok = h.store.Read()
	assert.False(t, ok)
}

func TestInvalidationWinsOverInFlightLogin(t *testing.T) {
	h := newHarness(t, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	h.gateway.login = func(string) (core.LoginResult, error) {
		close(started)
		<-release
		return core.LoginResult{Success: true, UserID: "u1", Token: "late", AlreadyRegistered: true}, nil
	}

	h.wallet.Connect()
	<-started
	h.dispatchDisconnected()
	close(release)
	h.auth.Wait()

	_, ok := h.store.Read()
	assert.False(t, ok, "a login resolved after invalidation must not resurrect the session")
}

func TestInvalidationDuringSignIn(t *testing.T) {
	var h *harness
	h = newHarness(t, func(context.Context, string) (bool, error) {
		h.dispatchDisconnected()
		return true, nil
	})

	h.wallet.Connect()
	h.auth.Wait()

	_, err := h.auth.SignIn(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, core.ErrSessionInvalidated)

	_, ok := h.store.Read()
	assert.False(t, ok)
}

func TestCancelledSignLeavesSessionUntouched(t *testing.T) {
	h := newHarness(t, func(context.Context, string) (bool, error) { return false, nil })

	h.wallet.Connect()
	h.auth.Wait()
	before := registeredSession(h.key(), "t1")
	before.AlreadyRegistered = false
	require.NoError(t, h.store.Commit(before))

	_, err := h.auth.SignIn(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, core.ErrSignCancelled)
	assert.Equal(t, "Sign cancelled", core.Notice(err))
	assert.Empty(t, h.gateway.registers())

	after, ok := h.store.Read()
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestSignInFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wallet not connected", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.auth.SignIn(ctx, "a@b.com")
		assert.ErrorIs(t, err, core.ErrWalletNotConnected)
	})

	t.Run("email required", func(t *testing.T) {
		h := newHarness(t, nil)
		h.wallet.Connect()
		_, err := h.auth.SignIn(ctx, "  ")
		assert.ErrorIs(t, err, core.ErrEmailRequired)
	})

	t.Run("signature does not verify", func(t *testing.T) {
		h := newHarness(t, nil, withVerifier(rejectAll{}))
		h.wallet.Connect()
		_, err := h.auth.SignIn(ctx, "a@b.com")
		assert.ErrorIs(t, err, core.ErrSignatureInvalid)
		assert.Empty(t, h.gateway.registers())
		_, ok := h.store.Read()
		assert.False(t, ok)
	})

	t.Run("gateway rejects", func(t *testing.T) {
		h := newHarness(t, nil)
		h.gateway.register = func(ports.RegisterRequest) (core.RegistrationResult, error) {
			return core.RegistrationResult{Success: false, Message: "banned"}, nil
		}
		h.wallet.Connect()
		_, err := h.auth.SignIn(ctx, "a@b.com")
		var rejected *core.GatewayRejectedError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "banned", rejected.Message)
		_, ok := h.store.Read()
		assert.False(t, ok)
	})
}

func TestSignInRejectsReentry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(context.Context, string) (bool, error) {
		close(entered)
		<-release
		return true, nil
	})
	h.wallet.Connect()

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = h.auth.SignIn(context.Background(), "a@b.com")
	}()

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("first sign in never reached the wallet")
	}

	_, err := h.auth.SignIn(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, core.ErrSignInInProgress)

	close(release)
	wg.Wait()
	assert.NoError(t, firstErr)
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("connected wallet", func(t *testing.T) {
		h := newHarness(t, nil)
		h.wallet.Connect()
		h.auth.Wait()
		require.NoError(t, h.store.Commit(registeredSession(h.key(), "t1")))

		require.NoError(t, h.auth.Logout(ctx))

		_, ok := h.store.Read()
		assert.False(t, ok)
		connected, err := h.wallet.IsConnected(ctx)
		require.NoError(t, err)
		assert.False(t, connected)
		assert.Equal(t, []string{"t1"}, h.revoker.tokens)
	})

	t.Run("already disconnected", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.store.Commit(registeredSession(h.key(), "t1")))

		require.NoError(t, h.auth.Logout(ctx))
		_, ok := h.store.Read()
		assert.False(t, ok)
	})
}
