package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ggurbet/onchainsurveys/adapters/casper"
	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// ErrKeyMismatch is returned when a sign request names a key the wallet does not hold.
var ErrKeyMismatch = errors.New("requested key is not held by this wallet")

// ErrNotConnected is returned for sign requests while disconnected from the site.
var ErrNotConnected = errors.New("wallet is not connected to this site")

// Approver decides whether the user approves signing message. Returning false cancels the request.
type Approver func(ctx context.Context, message string) (bool, error)

// AutoApprove approves every request.
func AutoApprove(context.Context, string) (bool, error) { return true, nil }

// KeyfileWallet is a WalletProvider holding a single local key pair.
// Connection changes are announced on its EventTarget like the browser extension does.
type KeyfileWallet struct {
	keys    *casper.KeyPair
	events  *EventTarget
	approve Approver

	mu        sync.Mutex
	connected bool
}

// NewKeyfileWallet wraps keys. A nil approver approves every request.
func NewKeyfileWallet(keys *casper.KeyPair, events *EventTarget, approve Approver) *KeyfileWallet {
	if approve == nil {
		approve = AutoApprove
	}
	return &KeyfileWallet{
		keys:    keys,
		events:  events,
		approve: approve,
	}
}

var _ ports.WalletProvider = (*KeyfileWallet)(nil)

// Events returns the event target the wallet dispatches on.
func (w *KeyfileWallet) Events() *EventTarget {
	return w.events
}

// PublicKeyHex returns the wallet's active key.
func (w *KeyfileWallet) PublicKeyHex() string {
	return w.keys.PublicKeyHex()
}

// Connect marks the site as connected and announces the active key.
func (w *KeyfileWallet) Connect() {
	w.mu.Lock()
	w.connected = true
	w.mu.Unlock()

	w.events.DispatchState(core.NativeEventActiveKeyChanged, core.WalletConnectionState{
		IsConnected:  true,
		ActiveKeyHex: w.keys.PublicKeyHex(),
	})
}

// IsConnected reports whether the site is connected.
func (w *KeyfileWallet) IsConnected(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected, nil
}

// DisconnectFromSite disconnects and announces it. It reports false when nothing was connected.
func (w *KeyfileWallet) DisconnectFromSite(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	w.mu.Lock()
	was := w.connected
	w.connected = false
	w.mu.Unlock()

	if !was {
		return false, nil
	}

	w.events.DispatchState(core.NativeEventDisconnected, core.WalletConnectionState{IsConnected: false})
	return true, nil
}

// SignMessage asks the approver, then signs with the Casper message header.
func (w *KeyfileWallet) SignMessage(ctx context.Context, message, publicKeyHex string) (ports.SignResult, error) {
	connected, err := w.IsConnected(ctx)
	if err != nil {
		return ports.SignResult{}, err
	}
	if !connected {
		return ports.SignResult{}, ErrNotConnected
	}

	key, err := casper.ParsePublicKey(publicKeyHex)
	if err != nil {
		return ports.SignResult{}, err
	}
	if key.Hex() != w.keys.PublicKeyHex() {
		return ports.SignResult{}, fmt.Errorf("%w: %s", ErrKeyMismatch, core.ShortKey(publicKeyHex))
	}

	ok, err := w.approve(ctx, message)
	if err != nil {
		return ports.SignResult{}, fmt.Errorf("approval: %w", err)
	}
	if !ok {
		return ports.SignResult{Cancelled: true}, nil
	}

	sig, err := w.keys.Sign(message)
	if err != nil {
		return ports.SignResult{}, err
	}
	return ports.SignResult{Signature: sig}, nil
}
