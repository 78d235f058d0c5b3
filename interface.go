// Package onchainsurveys keeps a wallet-backed session in step with the Casper Wallet.
package onchainsurveys

import (
	"context"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/service"
)

// Client represents the public interface for wallet based sign-in
type Client interface {
	// SignIn signs a challenge with the active wallet key and stores the resulting session.
	// email is required for keys the auth server has not seen yet.
	SignIn(ctx context.Context, email string) (core.Session, error)

	// Logout disconnects the wallet from the site and clears the session
	Logout(ctx context.Context) error

	// Session returns the stored session, if any
	Session() (core.Session, bool)

	// Guard mounts a session guard for a protected view
	Guard(redirect service.Redirector) (*service.SessionGuard, service.GuardState)

	// Wait blocks until background logins triggered by wallet events have finished
	Wait()

	// Close detaches from the wallet
	Close()
}
