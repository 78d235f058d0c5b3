package ports

import (
	"context"

	"github.com/ggurbet/onchainsurveys/core"
)

// SignResult is what the wallet returns for a sign request.
type SignResult struct {
	Cancelled bool
	Signature []byte
}

// WalletProvider is the signing and connection capability of the wallet extension.
type WalletProvider interface {
	IsConnected(ctx context.Context) (bool, error)
	DisconnectFromSite(ctx context.Context) (bool, error)
	SignMessage(ctx context.Context, message, publicKeyHex string) (SignResult, error)
}

// WalletEventSource delivers the extension's native events as raw JSON detail strings.
type WalletEventSource interface {
	AddEventListener(name string, fn func(detail string)) (remove func())
}

// SignatureVerifier checks a wallet signature locally.
type SignatureVerifier interface {
	Verify(publicKeyHex, message string, signature []byte) bool
}

// AuthGateway is the remote auth boundary.
type AuthGateway interface {
	RegisterOrAuthenticate(ctx context.Context, req RegisterRequest) (core.RegistrationResult, error)
	LoginWithKnownKey(ctx context.Context, publicKeyHex string) (core.LoginResult, error)
}

// RegisterRequest carries a verified challenge to the auth boundary.
type RegisterRequest struct {
	PublicKeyHex string
	Message      string
	Signature    []byte
}

// KeyResolver canonicalizes a public key and derives its on-chain account hash.
type KeyResolver interface {
	Resolve(publicKeyHex string) (canonical, accountHash string, err error)
}
