package casper

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ggurbet/onchainsurveys/ports"
)

const messageHeader = "Casper Message:\n"

// formatMessage returns the exact bytes the wallet signs for message.
func formatMessage(message string) []byte {
	return []byte(messageHeader + message)
}

func digestSecp256k1(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Verifier checks Casper Wallet message signatures.
type Verifier struct{}

// NewVerifier returns a stateless verifier.
func NewVerifier() ports.SignatureVerifier {
	return Verifier{}
}

// Verify returns false for any malformed key or signature; it never panics or errors.
func (Verifier) Verify(publicKeyHex, message string, signature []byte) bool {
	return VerifyMessage(publicKeyHex, message, signature)
}

// VerifyMessage reports whether signature is a valid signature of message by publicKeyHex.
func VerifyMessage(publicKeyHex, message string, signature []byte) bool {
	key, err := ParsePublicKey(publicKeyHex)
	if err != nil || len(signature) != 64 {
		return false
	}

	data := formatMessage(message)

	switch key.Algorithm {
	case Ed25519:
		return ed25519.Verify(ed25519.PublicKey(key.Raw), data, signature)
	case Secp256k1:
		return crypto.VerifySignature(key.Raw, digestSecp256k1(data), signature)
	default:
		return false
	}
}

var _ ports.KeyResolver = Verifier{}

// Resolve returns the lowercase key hex and its account hash. Invalid keys wrap core.ErrInvalidPublicKey.
func (Verifier) Resolve(publicKeyHex string) (string, string, error) {
	key, err := ParsePublicKey(publicKeyHex)
	if err != nil {
		return "", "", err
	}
	return key.Hex(), key.AccountHash(), nil
}
