package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggurbet/onchainsurveys/adapters/sessionstore"
	"github.com/ggurbet/onchainsurveys/adapters/wallet"
	"github.com/ggurbet/onchainsurveys/core"
)

type recorder struct {
	targets []string
}

func (r *recorder) redirect(target string) {
	r.targets = append(r.targets, target)
}

func TestDeriveGuardState(t *testing.T) {
	assert.Equal(t, Unauthenticated, DeriveGuardState(core.Session{}, false))
	assert.Equal(t, Unauthenticated, DeriveGuardState(core.Session{Token: "t1"}, true))
	assert.Equal(t, Authenticated, DeriveGuardState(registeredSession("02ab", "t1"), true))
}

func TestNextGuardState(t *testing.T) {
	invalidated := core.WalletEvent{Kind: core.EventSessionInvalidated}
	observed := core.WalletEvent{Kind: core.EventActiveKeyObserved, Key: "02ab"}

	assert.Equal(t, WalletDisconnected, NextGuardState(Authenticated, invalidated))
	assert.Equal(t, Authenticated, NextGuardState(Authenticated, observed))
	assert.Equal(t, Unauthenticated, NextGuardState(Unauthenticated, invalidated))
}

func TestGuardRedirectsToLoginWithoutSession(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	bridge := NewWalletEventBridge(wallet.NewEventTarget(), discardLogger())
	rec := &recorder{}

	guard := NewSessionGuard(store, rec.redirect, discardLogger())
	defer guard.Unmount()

	assert.Equal(t, Unauthenticated, guard.Mount(bridge))
	assert.Equal(t, []string{LoginRoute}, rec.targets)
}

func TestGuardDisconnectClearsThenRedirectsOnce(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	require.NoError(t, store.Commit(registeredSession("02ab", "t1")))
	target := wallet.NewEventTarget()
	bridge := NewWalletEventBridge(target, discardLogger())

	var clearedBeforeRedirect bool
	rec := &recorder{}
	guard := NewSessionGuard(store, func(to string) {
		_, ok := store.Read()
		clearedBeforeRedirect = !ok
		rec.redirect(to)
	}, discardLogger())
	defer guard.Unmount()

	require.Equal(t, Authenticated, guard.Mount(bridge))
	assert.Empty(t, rec.targets)

	target.DispatchState(core.NativeEventDisconnected, core.WalletConnectionState{})
	target.DispatchState(core.NativeEventDisconnected, core.WalletConnectionState{})

	assert.Equal(t, []string{HomeRoute}, rec.targets, "one redirect per transition")
	assert.True(t, clearedBeforeRedirect)
	assert.Equal(t, Unauthenticated, guard.State())
}

func TestGuardRederivesOnEveryMount(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	bridge := NewWalletEventBridge(wallet.NewEventTarget(), discardLogger())
	rec := &recorder{}
	guard := NewSessionGuard(store, rec.redirect, discardLogger())
	defer guard.Unmount()

	assert.Equal(t, Unauthenticated, guard.Mount(bridge))
	require.NoError(t, store.Commit(registeredSession("02ab", "t1")))
	assert.Equal(t, Authenticated, guard.Mount(bridge))
	assert.Equal(t, 1, bridge.Listeners())
}

func TestGuardAndAuthenticatorShareBridge(t *testing.T) {
	h := newHarness(t, nil)
	h.wallet.Connect()
	h.auth.Wait()
	require.NoError(t, h.store.Commit(registeredSession(h.key(), "t1")))

	rec := &recorder{}
	guard := NewSessionGuard(h.store, rec.redirect, discardLogger())
	require.Equal(t, Authenticated, guard.Mount(h.bridge))
	defer guard.Unmount()

	assert.Equal(t, 1, h.wallet.Events().ListenerCount(core.NativeEventDisconnected))

	_, err := h.wallet.DisconnectFromSite(t.Context())
	require.NoError(t, err)

	_, ok := h.store.Read()
	assert.False(t, ok)
	assert.Equal(t, []string{HomeRoute}, rec.targets)
}
