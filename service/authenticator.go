package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

var errDisconnectRefused = errors.New("wallet refused to disconnect")

// TokenRevoker revokes a session token on the auth server.
type TokenRevoker interface {
	Logout(ctx context.Context, token string) error
}

// AuthenticatorConfig carries the collaborators of an Authenticator.
type AuthenticatorConfig struct {
	Store    ports.SessionStore
	Bridge   *WalletEventBridge
	Signer   *ChallengeSigner
	Verifier ports.SignatureVerifier
	Gateway  ports.AuthGateway
	Wallet   ports.WalletProvider
	Revoker  TokenRevoker // Optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// Authenticator drives sign-in and keeps the session store in step with wallet events.
type Authenticator struct {
	store    ports.SessionStore
	bridge   *WalletEventBridge
	signer   *ChallengeSigner
	verifier ports.SignatureVerifier
	gateway  ports.AuthGateway
	wallet   ports.WalletProvider
	revoker  TokenRevoker
	logger   *slog.Logger
	now      func() time.Time

	inFlight atomic.Bool

	// mu orders session commits against invalidations. epoch grows on every
	// invalidation and active key switch; a commit for an older epoch is dropped.
	mu        sync.Mutex
	epoch     uint64
	activeKey string
	closed    bool

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// NewAuthenticator creates an authenticator. Call Start to begin reacting to wallet events.
func NewAuthenticator(cfg AuthenticatorConfig) *Authenticator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Authenticator{
		store:    cfg.Store,
		bridge:   cfg.Bridge,
		signer:   cfg.Signer,
		verifier: cfg.Verifier,
		gateway:  cfg.Gateway,
		wallet:   cfg.Wallet,
		revoker:  cfg.Revoker,
		logger:   logger.With(slog.String("component", "authenticator")),
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the bridge. It does nothing after Close.
func (a *Authenticator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe == nil && !a.closed {
		a.unsubscribe = a.bridge.Subscribe(a.handleEvent)
	}
}

// Close unsubscribes, cancels background logins and waits for them.
func (a *Authenticator) Close() {
	a.mu.Lock()
	a.closed = true
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	a.cancel()
	a.wg.Wait()
}

// Wait blocks until background returning-session logins have finished.
func (a *Authenticator) Wait() {
	a.wg.Wait()
}

// Session returns the committed session, if any.
func (a *Authenticator) Session() (core.Session, bool) {
	return a.store.Read()
}

func (a *Authenticator) handleEvent(ev core.WalletEvent) {
	switch ev.Kind {
	case core.EventSessionInvalidated:
		a.invalidate()
	case core.EventActiveKeyObserved:
		epoch, ok := a.observeKey(ev.Key)
		if !ok {
			return
		}
		go a.loginKnownKey(epoch, ev.Key)
	}
}

// invalidate clears the session. Safe to call any number of times.
func (a *Authenticator) invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.epoch++
	a.activeKey = ""
	if err := a.store.Clear(); err != nil {
		a.logger.Error("failed to clear session", slog.Any("error", err))
		return
	}
	a.logger.Info("session cleared", slog.String("reason", core.EventSessionInvalidated.String()))
}

// observeKey records key as active and reserves a background login for it.
// It reports false once the authenticator is closed.
func (a *Authenticator) observeKey(key string) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// A pass that snapshotted listeners before Close must not start a login.
	if a.closed {
		return 0, false
	}
	if key != a.activeKey {
		a.epoch++
		a.activeKey = key
	}
	a.wg.Add(1)
	return a.epoch, true
}

func (a *Authenticator) currentEpoch() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch
}

// commit writes session unless an invalidation or key switch happened after epoch.
func (a *Authenticator) commit(epoch uint64, session core.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.epoch != epoch {
		return core.ErrSessionInvalidated
	}
	return a.store.Commit(session)
}

// loginKnownKey refreshes the session for a returning key. Failure leaves the store untouched.
func (a *Authenticator) loginKnownKey(epoch uint64, key string) {
	defer a.wg.Done()

	log := a.logger.With(slog.String("key", core.ShortKey(key)))

	res, err := a.gateway.LoginWithKnownKey(a.ctx, key)
	if err != nil {
		log.Warn("returning-session login failed", slog.Any("error", err))
		return
	}
	if !res.Success {
		log.Info("returning-session login rejected", slog.String("message", res.Message))
		return
	}

	session := core.Session{
		Token:              res.Token,
		UserID:             res.UserID,
		ActivePublicKeyHex: key,
		AlreadyRegistered:  res.AlreadyRegistered,
	}
	if err := a.commit(epoch, session); err != nil {
		log.Info("discarding returning-session login", slog.Any("error", err))
		return
	}
	log.Info("returning-session login committed", slog.String("user_id", res.UserID))
}

// SignIn runs the challenge flow for the wallet's active key. email is required
// unless the stored session marks the key as already registered.
func (a *Authenticator) SignIn(ctx context.Context, email string) (core.Session, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return core.Session{}, core.ErrSignInInProgress
	}
	defer a.inFlight.Store(false)

	state := a.bridge.State()
	if !state.IsConnected || state.ActiveKeyHex == "" {
		return core.Session{}, core.ErrWalletNotConnected
	}
	key := state.ActiveKeyHex
	epoch := a.currentEpoch()

	message, err := a.challengeFor(key, email)
	if err != nil {
		return core.Session{}, err
	}

	log := a.logger.With(slog.String("key", core.ShortKey(key)))

	signed, err := a.signer.RequestSignature(ctx, message, key)
	if err != nil {
		return core.Session{}, err
	}
	if signed.Cancelled {
		return core.Session{}, core.ErrSignCancelled
	}

	if !a.verifier.Verify(key, message, signed.SignatureBytes) {
		log.Warn("wallet signature did not verify")
		return core.Session{}, core.ErrSignatureInvalid
	}

	res, err := a.gateway.RegisterOrAuthenticate(ctx, ports.RegisterRequest{
		PublicKeyHex: key,
		Message:      message,
		Signature:    signed.SignatureBytes,
	})
	if err != nil {
		return core.Session{}, fmt.Errorf("register: %w", err)
	}
	if !res.Success {
		return core.Session{}, &core.GatewayRejectedError{Op: "register", Message: res.Message}
	}

	session := core.Session{
		Token:              res.Token,
		UserID:             res.UserID,
		ActivePublicKeyHex: key,
		AlreadyRegistered:  res.AlreadyRegistered,
		ProvidedSignature:  hex.EncodeToString(signed.SignatureBytes),
	}
	if err := a.commit(epoch, session); err != nil {
		log.Info("sign in discarded", slog.Any("error", err))
		return core.Session{}, err
	}

	log.Info("signed in", slog.String("user_id", res.UserID), slog.Bool("already_registered", res.AlreadyRegistered))
	return session, nil
}

func (a *Authenticator) challengeFor(key, email string) (string, error) {
	if existing, ok := a.store.Read(); ok && existing.ActivePublicKeyHex == key && existing.AlreadyRegistered {
		return core.ReturningChallenge(a.now())
	}
	return core.RegistrationChallenge(email)
}

// Logout disconnects the wallet from the site and clears the session.
// A connected wallet that refuses to disconnect leaves the session in place.
func (a *Authenticator) Logout(ctx context.Context) error {
	session, hadSession := a.store.Read()

	connected, err := a.wallet.IsConnected(ctx)
	if err != nil {
		return &core.WalletCommunicationError{Op: "isConnected", Err: err}
	}

	if connected {
		ok, err := a.wallet.DisconnectFromSite(ctx)
		if err != nil {
			return &core.WalletCommunicationError{Op: "disconnectFromSite", Err: err}
		}
		if !ok {
			return &core.WalletCommunicationError{Op: "disconnectFromSite", Err: errDisconnectRefused}
		}
	}

	a.invalidate()

	if hadSession && a.revoker != nil {
		if err := a.revoker.Logout(ctx, session.Token); err != nil {
			a.logger.Warn("failed to revoke token on server", slog.Any("error", err))
		}
	}
	return nil
}
