package service

import (
	"log/slog"
	"sync"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// Redirect targets used by the guard.
const (
	LoginRoute = "/login"
	HomeRoute  = "/"
)

// GuardState is the access state of a protected view.
type GuardState int

const (
	Unauthenticated GuardState = iota
	WalletDisconnected
	Authenticated
)

func (s GuardState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case WalletDisconnected:
		return "wallet_disconnected"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Redirector performs a navigation effect.
type Redirector func(target string)

// DeriveGuardState computes the initial state from storage contents.
func DeriveGuardState(session core.Session, ok bool) GuardState {
	if ok && session.Complete() {
		return Authenticated
	}
	return Unauthenticated
}

// NextGuardState applies a wallet event to state.
func NextGuardState(state GuardState, ev core.WalletEvent) GuardState {
	if state == Authenticated && ev.Kind == core.EventSessionInvalidated {
		return WalletDisconnected
	}
	return state
}

// SessionGuard protects a view: it admits only a complete session and
// reacts to wallet disconnection by clearing the session and redirecting home.
type SessionGuard struct {
	store    ports.SessionStore
	redirect Redirector
	logger   *slog.Logger

	mu          sync.Mutex
	state       GuardState
	unsubscribe func()
}

// NewSessionGuard creates a guard. A nil redirect is a no-op.
func NewSessionGuard(store ports.SessionStore, redirect Redirector, logger *slog.Logger) *SessionGuard {
	if redirect == nil {
		redirect = func(string) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionGuard{
		store:    store,
		redirect: redirect,
		logger:   logger.With(slog.String("component", "session_guard")),
	}
}

// Mount derives the state from storage and starts listening on bridge.
// An unauthenticated mount redirects to the login route once.
func (g *SessionGuard) Mount(bridge *WalletEventBridge) GuardState {
	g.mu.Lock()
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
	g.state = DeriveGuardState(g.store.Read())
	state := g.state
	g.unsubscribe = bridge.Subscribe(g.onEvent)
	g.mu.Unlock()

	if state == Unauthenticated {
		g.logger.Info("no session, redirecting", slog.String("target", LoginRoute))
		g.redirect(LoginRoute)
	}
	return state
}

// Unmount stops listening.
func (g *SessionGuard) Unmount() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
}

// State returns the current guard state.
func (g *SessionGuard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *SessionGuard) onEvent(ev core.WalletEvent) {
	g.mu.Lock()
	next := NextGuardState(g.state, ev)
	if next != WalletDisconnected {
		g.mu.Unlock()
		return
	}

	// Clear before the redirect so the next view never sees the old session.
	if err := g.store.Clear(); err != nil {
		g.logger.Error("failed to clear session", slog.Any("error", err))
	}
	g.state = Unauthenticated
	g.mu.Unlock()

	g.logger.Info("wallet disconnected, redirecting", slog.String("target", HomeRoute))
	g.redirect(HomeRoute)
}
