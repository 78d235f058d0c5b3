package core

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEventPayload = errors.New("malformed wallet event payload")
	ErrSignCancelled         = errors.New("sign cancelled")
	ErrSignatureInvalid      = errors.New("could not verify signature")
	ErrSignInInProgress      = errors.New("sign in already in progress")
	ErrWalletNotConnected    = errors.New("wallet is not connected")
	ErrEmailRequired         = errors.New("email is required for first registration")
	ErrSessionInvalidated    = errors.New("session invalidated by wallet")
	ErrInvalidPublicKey      = errors.New("invalid public key")

	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenInvalidated     = errors.New("token has been invalidated")
	ErrInvalidToken         = errors.New("invalid token")
	ErrUserNotFound         = errors.New("user not found")
	ErrStoreOperationFailed = errors.New("store operation failed")
)

// WalletCommunicationError reports a failed call into the wallet extension.
// It is fatal to the current attempt only; retrying the same operation is allowed.
type WalletCommunicationError struct {
	Op  string
	Err error
}

func (e *WalletCommunicationError) Error() string {
	return fmt.Sprintf("wallet %s: %v", e.Op, e.Err)
}

func (e *WalletCommunicationError) Unwrap() error {
	return e.Err
}

// GatewayRejectedError reports a success:false answer from the auth boundary.
type GatewayRejectedError struct {
	Op      string
	Message string
}

func (e *GatewayRejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth gateway rejected %s", e.Op)
	}
	return fmt.Sprintf("auth gateway rejected %s: %s", e.Op, e.Message)
}
