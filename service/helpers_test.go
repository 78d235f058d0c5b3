package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/adapters/sessionstore"
	"github.com/ggurbet/onchainsurveys/adapters/wallet"
	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGateway struct {
	mu            sync.Mutex
	register      func(ports.RegisterRequest) (core.RegistrationResult, error)
	login         func(string) (core.LoginResult, error)
	registerCalls []ports.RegisterRequest
	loginCalls    []string
}

func (g *fakeGateway) RegisterOrAuthenticate(_ context.Context, req ports.RegisterRequest) (core.RegistrationResult, error) {
	g.mu.Lock()
	g.registerCalls = append(g.registerCalls, req)
	fn := g.register
	g.mu.Unlock()

	if fn == nil {
		return core.RegistrationResult{Success: true, UserID: "u1", Token: "t1"}, nil
	}
	return fn(req)
}

func (g *fakeGateway) LoginWithKnownKey(_ context.Context, key string) (core.LoginResult, error) {
	g.mu.Lock()
	g.loginCalls = append(g.loginCalls, key)
	fn := g.login
	g.mu.Unlock()

	if fn == nil {
		return core.LoginResult{Success: false, Message: "unknown public key"}, nil
	}
	return fn(key)
}

func (g *fakeGateway) registers() []ports.RegisterRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.RegisterRequest(nil), g.registerCalls...)
}

func (g *fakeGateway) logins() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.loginCalls)
}

type fakeRevoker struct {
	mu     sync.Mutex
	tokens []string
}

func (r *fakeRevoker) Logout(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
	return nil
}

type rejectAll struct{}

func (rejectAll) Verify(string, string, []byte) bool { return false }

type harness struct {
	wallet  *wallet.KeyfileWallet
	bridge  *WalletEventBridge
	store   *sessionstore.MemoryStore
	gateway *fakeGateway
	revoker *fakeRevoker
	auth    *Authenticator
}

type harnessOption func(*AuthenticatorConfig)

func withVerifier(v ports.SignatureVerifier) harnessOption {
	return func(cfg *AuthenticatorConfig) { cfg.Verifier = v }
}

func newHarness(t *testing.T, approve wallet.Approver, opts ...harnessOption) *harness {
	t.Helper()

	kp, err := casper.GenerateKeyPair(casper.Secp256k1)
	require.NoError(t, err)

	logger := discardLogger()
	w := wallet.NewKeyfileWallet(kp, wallet.NewEventTarget(), approve)
	bridge := NewWalletEventBridge(w.Events(), logger)
	h := &harness{
		wallet:  w,
		bridge:  bridge,
		store:   sessionstore.NewMemoryStore(),
		gateway: &fakeGateway{},
		revoker: &fakeRevoker{},
	}

	cfg := AuthenticatorConfig{
		Store:    h.store,
		Bridge:   bridge,
		Signer:   NewChallengeSigner(w, DefaultSignTimeout, logger),
		Verifier: casper.NewVerifier(),
		Gateway:  h.gateway,
		Wallet:   w,
		Revoker:  h.revoker,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.auth = NewAuthenticator(cfg)
	h.auth.Start()
	t.Cleanup(h.auth.Close)
	return h
}

func (h *harness) key() string {
	return h.wallet.PublicKeyHex()
}

// switchKey announces a different active key without touching the wallet's own key.
func (h *harness) switchKey(key string) {
	h.wallet.Events().DispatchState(core.NativeEventActiveKeyChanged, core.WalletConnectionState{
		IsConnected:  true,
		ActiveKeyHex: key,
	})
}

func (h *harness) dispatchDisconnected() {
	h.wallet.Events().DispatchState(core.NativeEventDisconnected, core.WalletConnectionState{IsConnected: false})
}
