package core

// Native event names fired by the Casper Wallet extension.
const (
	NativeEventDisconnected     = "casper-wallet:disconnected"
	NativeEventActiveKeyChanged = "casper-wallet:activeKeyChanged"
)

// WalletEventKind identifies a normalized wallet event.
type WalletEventKind int

const (
	// EventSessionInvalidated means the wallet is no longer connected to the site.
	EventSessionInvalidated WalletEventKind = iota + 1

	// EventActiveKeyObserved means the wallet reported an active public key.
	EventActiveKeyObserved
)

func (k WalletEventKind) String() string {
	switch k {
	case EventSessionInvalidated:
		return "session_invalidated"
	case EventActiveKeyObserved:
		return "active_key_observed"
	default:
		return "unknown"
	}
}

// WalletEvent is a normalized event broadcast by the wallet event bridge.
type WalletEvent struct {
	Kind  WalletEventKind
	Key   string                // Set for EventActiveKeyObserved
	State WalletConnectionState // Connection state carried by the native event
}
