package onchainsurveys

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
	"github.com/ggurbet/onchainsurveys/service"
)

// Options wires a Client.
type Options struct {
	Wallet   ports.WalletProvider
	Events   ports.WalletEventSource
	Store    ports.SessionStore
	Gateway  ports.AuthGateway
	Verifier ports.SignatureVerifier // Defaults to the Casper verifier

	// SignTimeout bounds a sign request; zero selects service.DefaultSignTimeout.
	SignTimeout time.Duration
	Logger      *slog.Logger
}

type client struct {
	bridge *service.WalletEventBridge
	auth   *service.Authenticator
	store  ports.SessionStore
	logger *slog.Logger
}

// New creates a Client and subscribes it to wallet events.
// A Gateway that can also revoke tokens has them revoked on Logout.
func New(opts Options) (Client, error) {
	switch {
	case opts.Wallet == nil:
		return nil, errors.New("wallet is required")
	case opts.Events == nil:
		return nil, errors.New("wallet event source is required")
	case opts.Store == nil:
		return nil, errors.New("session store is required")
	case opts.Gateway == nil:
		return nil, errors.New("auth gateway is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = casper.NewVerifier()
	}
	timeout := opts.SignTimeout
	if timeout == 0 {
		timeout = service.DefaultSignTimeout
	}

	revoker, _ := opts.Gateway.(service.TokenRevoker)

	bridge := service.NewWalletEventBridge(opts.Events, logger)
	auth := service.NewAuthenticator(service.AuthenticatorConfig{
		Store:    opts.Store,
		Bridge:   bridge,
		Signer:   service.NewChallengeSigner(opts.Wallet, timeout, logger),
		Verifier: verifier,
		Gateway:  opts.Gateway,
		Wallet:   opts.Wallet,
		Revoker:  revoker,
		Logger:   logger,
	})
	auth.Start()

	return &client{
		bridge: bridge,
		auth:   auth,
		store:  opts.Store,
		logger: logger,
	}, nil
}

func (c *client) SignIn(ctx context.Context, email string) (core.Session, error) {
	return c.auth.SignIn(ctx, email)
}

func (c *client) Logout(ctx context.Context) error {
	return c.auth.Logout(ctx)
}

func (c *client) Session() (core.Session, bool) {
	return c.store.Read()
}

func (c *client) Guard(redirect service.Redirector) (*service.SessionGuard, service.GuardState) {
	guard := service.NewSessionGuard(c.store, redirect, c.logger)
	return guard, guard.Mount(c.bridge)
}

func (c *client) Wait() {
	c.auth.Wait()
}

func (c *client) Close() {
	c.auth.Close()
}
