package service

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

// WalletListener receives normalized wallet events. Listeners must be idempotent:
// the same event may reach several listeners that apply the same effect.
type WalletListener func(core.WalletEvent)

type bridgeListener struct {
	id int
	fn WalletListener
}

// WalletEventBridge is the single process-wide subscription to the wallet's native events.
// The native handlers are attached while at least one listener is subscribed.
type WalletEventBridge struct {
	source ports.WalletEventSource
	logger *slog.Logger

	mu        sync.Mutex
	nextID    int
	listeners []bridgeListener
	detach    []func()

	// dispatchMu serializes reconciliation passes; state is only written under it.
	dispatchMu sync.Mutex
	stateMu    sync.RWMutex
	state      core.WalletConnectionState
}

// NewWalletEventBridge creates a bridge over source.
func NewWalletEventBridge(source ports.WalletEventSource, logger *slog.Logger) *WalletEventBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletEventBridge{
		source: source,
		logger: logger.With(slog.String("component", "wallet_bridge")),
	}
}

// Subscribe registers fn and returns its unsubscribe func, which is safe to call more than once.
// The first subscriber attaches the native handlers and the last one to leave detaches them.
func (b *WalletEventBridge) Subscribe(fn WalletListener) func() {
	b.mu.Lock()
	if len(b.listeners) == 0 {
		b.detach = []func(){
			b.source.AddEventListener(core.NativeEventDisconnected, func(detail string) {
				b.handle(core.NativeEventDisconnected, detail)
			}),
			b.source.AddEventListener(core.NativeEventActiveKeyChanged, func(detail string) {
				b.handle(core.NativeEventActiveKeyChanged, detail)
			}),
		}
	}
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, bridgeListener{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *WalletEventBridge) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			break
		}
	}

	if len(b.listeners) == 0 {
		for _, remove := range b.detach {
			remove()
		}
		b.detach = nil
	}
}

// Listeners returns the number of subscribed listeners.
func (b *WalletEventBridge) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// State returns the connection state derived from the last accepted event.
func (b *WalletEventBridge) State() core.WalletConnectionState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// nativePayload mirrors the extension's JSON detail. Pointers tell a missing field from a zero one.
type nativePayload struct {
	IsConnected *bool   `json:"isConnected"`
	ActiveKey   *string `json:"activeKey"`
}

// handle runs one reconciliation pass for a native event.
// A disconnected payload only invalidates: an activeKey it carries is recorded
// in State but never observed, so it cannot start a login.
func (b *WalletEventBridge) handle(name, detail string) {
	var payload nativePayload
	if err := json.Unmarshal([]byte(detail), &payload); err != nil || payload.IsConnected == nil {
		b.logger.Warn("discarding wallet event",
			slog.String("event", name),
			slog.Any("error", core.ErrMalformedEventPayload),
			slog.Any("cause", err),
		)
		return
	}

	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()

	state := core.WalletConnectionState{IsConnected: *payload.IsConnected}
	if payload.ActiveKey != nil {
		state.ActiveKeyHex = *payload.ActiveKey
	}
	if state.IsConnected && state.ActiveKeyHex == "" {
		state.ActiveKeyHex = b.State().ActiveKeyHex
	}

	b.stateMu.Lock()
	b.state = state
	b.stateMu.Unlock()

	var ev core.WalletEvent
	switch {
	case !state.IsConnected:
		// A disconnected state invalidates the session whichever event carried it.
		ev = core.WalletEvent{Kind: core.EventSessionInvalidated, State: state}
	case name == core.NativeEventActiveKeyChanged && payload.ActiveKey != nil && *payload.ActiveKey != "":
		ev = core.WalletEvent{Kind: core.EventActiveKeyObserved, Key: *payload.ActiveKey, State: state}
	default:
		return
	}

	b.logger.Debug("wallet event", slog.String("event", name), slog.String("kind", ev.Kind.String()))

	b.mu.Lock()
	listeners := append([]bridgeListener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}
