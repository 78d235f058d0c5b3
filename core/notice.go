package core

import "errors"

// Notice converts an authentication failure into the text shown to the user.
// Every failure is handled at its boundary, so callers print the notice and stay on the current screen.
func Notice(err error) string {
	if err == nil {
		return ""
	}

	var walletErr *WalletCommunicationError
	var rejected *GatewayRejectedError

	switch {
	case errors.Is(err, ErrSignCancelled):
		return "Sign cancelled"
	case errors.Is(err, ErrSignatureInvalid):
		return "Error: Could not verify the signature"
	case errors.Is(err, ErrSignInInProgress):
		return "Verifying ..."
	case errors.Is(err, ErrWalletNotConnected):
		return "Connect your Casper Wallet first"
	case errors.Is(err, ErrEmailRequired):
		return "Enter your e-mail address to register"
	case errors.Is(err, ErrSessionInvalidated):
		return "Wallet disconnected, please sign in again"
	case errors.Is(err, ErrMalformedEventPayload):
		return ""
	case errors.As(err, &walletErr):
		return "Error: " + walletErr.Err.Error()
	case errors.As(err, &rejected):
		if rejected.Message != "" {
			return "Sign in rejected: " + rejected.Message
		}
		return "Sign in rejected"
	default:
		return "Error: " + err.Error()
	}
}

// IsFatalToSession reports whether err forces the user off protected views.
// Only a wallet-driven invalidation does; everything else leaves the user where they are.
func IsFatalToSession(err error) bool {
	return errors.Is(err, ErrSessionInvalidated)
}
