// Package casper implements the Casper Wallet signing scheme: tagged public keys,
// message signature verification and local key pairs used by key-file wallets.
package casper

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"

	"github.com/ggurbet/onchainsurveys/core"
)

// Algorithm is the signature algorithm of a key, encoded as the leading tag byte.
type Algorithm byte

const (
	Ed25519   Algorithm = 0x01
	Secp256k1 Algorithm = 0x02
)

func (a Algorithm) String() string {
	switch a {
	case Ed25519:
		return "ed25519"
	case Secp256k1:
		return "secp256k1"
	default:
		return fmt.Sprintf("unknown(%#x)", byte(a))
	}
}

// ParseAlgorithm accepts "ed25519" or "secp256k1".
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "ed25519":
		return Ed25519, nil
	case "secp256k1":
		return Secp256k1, nil
	default:
		return 0, fmt.Errorf("unsupported algorithm %q", name)
	}
}

// PublicKey is a tagged Casper public key.
type PublicKey struct {
	Algorithm Algorithm
	Raw       []byte // 32 bytes for ed25519, 33 compressed bytes for secp256k1
}

// ParsePublicKey decodes a hex public key of the form <tag><key bytes>.
func ParsePublicKey(keyHex string) (PublicKey, error) {
	b, err := hexutil.Decode("0x" + strings.TrimPrefix(keyHex, "0x"))
	if err != nil || len(b) == 0 {
		return PublicKey{}, fmt.Errorf("%w: %q", core.ErrInvalidPublicKey, keyHex)
	}

	switch Algorithm(b[0]) {
	case Ed25519:
		if len(b) != 1+ed25519.PublicKeySize {
			return PublicKey{}, fmt.Errorf("%w: ed25519 key must be %d bytes", core.ErrInvalidPublicKey, ed25519.PublicKeySize)
		}
	case Secp256k1:
		if len(b) != 1+33 {
			return PublicKey{}, fmt.Errorf("%w: secp256k1 key must be 33 compressed bytes", core.ErrInvalidPublicKey)
		}
		if _, err := crypto.DecompressPubkey(b[1:]); err != nil {
			return PublicKey{}, fmt.Errorf("%w: %v", core.ErrInvalidPublicKey, err)
		}
	default:
		return PublicKey{}, fmt.Errorf("%w: unknown algorithm tag %#x", core.ErrInvalidPublicKey, b[0])
	}

	return PublicKey{Algorithm: Algorithm(b[0]), Raw: b[1:]}, nil
}

// Hex returns the lower-case tagged hex form.
func (k PublicKey) Hex() string {
	return hex.EncodeToString(append([]byte{byte(k.Algorithm)}, k.Raw...))
}

// AccountHash is blake2b256(algorithm name || 0x00 || raw key), hex encoded.
func (k PublicKey) AccountHash() string {
	preimage := append([]byte(k.Algorithm.String()), 0x00)
	preimage = append(preimage, k.Raw...)
	sum := blake2b.Sum256(preimage)
	return hex.EncodeToString(sum[:])
}

// KeyPair is a local signing key.
type KeyPair struct {
	algorithm Algorithm
	ed        ed25519.PrivateKey
	secp      *ecdsa.PrivateKey
}

// GenerateKeyPair creates a new random key pair.
func GenerateKeyPair(algo Algorithm) (*KeyPair, error) {
	switch algo {
	case Ed25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating ed25519 key: %w", err)
		}
		return &KeyPair{algorithm: Ed25519, ed: priv}, nil
	case Secp256k1:
		priv, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generating secp256k1 key: %w", err)
		}
		return &KeyPair{algorithm: Secp256k1, secp: priv}, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %s", algo)
	}
}

// ParseSecretHex decodes a tagged secret: <tag><32-byte seed or scalar>.
func ParseSecretHex(secretHex string) (*KeyPair, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(secretHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decoding secret key: %w", err)
	}
	if len(b) != 33 {
		return nil, fmt.Errorf("secret key must be 33 bytes, got %d", len(b))
	}

	switch Algorithm(b[0]) {
	case Ed25519:
		return &KeyPair{algorithm: Ed25519, ed: ed25519.NewKeyFromSeed(b[1:])}, nil
	case Secp256k1:
		priv, err := crypto.ToECDSA(b[1:])
		if err != nil {
			return nil, fmt.Errorf("parsing secp256k1 key: %w", err)
		}
		return &KeyPair{algorithm: Secp256k1, secp: priv}, nil
	default:
		return nil, fmt.Errorf("unknown algorithm tag %#x", b[0])
	}
}

// LoadKeyFile reads a tagged hex secret from path.
func LoadKeyFile(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return ParseSecretHex(string(data))
}

// SaveKeyFile writes the tagged hex secret to path, readable by the owner only.
func (kp *KeyPair) SaveKeyFile(path string) error {
	return os.WriteFile(path, []byte(kp.SecretHex()+"\n"), 0600)
}

// Algorithm returns the key algorithm.
func (kp *KeyPair) Algorithm() Algorithm {
	return kp.algorithm
}

// SecretHex returns the tagged secret as hex.
func (kp *KeyPair) SecretHex() string {
	var secret []byte
	if kp.algorithm == Ed25519 {
		secret = kp.ed.Seed()
	} else {
		secret = crypto.FromECDSA(kp.secp)
	}
	return hex.EncodeToString(append([]byte{byte(kp.algorithm)}, secret...))
}

// PublicKey returns the tagged public key.
func (kp *KeyPair) PublicKey() PublicKey {
	if kp.algorithm == Ed25519 {
		return PublicKey{Algorithm: Ed25519, Raw: []byte(kp.ed.Public().(ed25519.PublicKey))}
	}
	return PublicKey{Algorithm: Secp256k1, Raw: crypto.CompressPubkey(&kp.secp.PublicKey)}
}

// PublicKeyHex is shorthand for PublicKey().Hex().
func (kp *KeyPair) PublicKeyHex() string {
	return kp.PublicKey().Hex()
}

// Sign signs message with the Casper message header.
// The result is 64 bytes for both algorithms.
func (kp *KeyPair) Sign(message string) ([]byte, error) {
	data := formatMessage(message)

	if kp.algorithm == Ed25519 {
		return ed25519.Sign(kp.ed, data), nil
	}

	digest := digestSecp256k1(data)
	sig, err := crypto.Sign(digest, kp.secp)
	if err != nil {
		return nil, fmt.Errorf("signing message: %w", err)
	}
	// Drop the recovery id: Casper signatures are R || S.
	return sig[:64], nil
}
