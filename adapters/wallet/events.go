// Package wallet emulates the Casper Wallet extension boundary for non-browser hosts:
// a named event target delivering JSON detail strings, and a key-file backed provider.
package wallet

import (
	"encoding/json"
	"sync"

	"github.com/ggurbet/onchainsurveys/core"
	"github.com/ggurbet/onchainsurveys/ports"
)

type listener struct {
	id int
	fn func(detail string)
}

// EventTarget dispatches named native events to registered listeners in registration order.
type EventTarget struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string][]listener
}

// NewEventTarget creates an empty event target.
func NewEventTarget() *EventTarget {
	return &EventTarget{listeners: make(map[string][]listener)}
}

var _ ports.WalletEventSource = (*EventTarget)(nil)

// AddEventListener registers fn for name. The returned func removes it and is safe to call twice.
func (t *EventTarget) AddEventListener(name string, fn func(detail string)) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.listeners[name] = append(t.listeners[name], listener{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			ls := t.listeners[name]
			for i, l := range ls {
				if l.id == id {
					t.listeners[name] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
			if len(t.listeners[name]) == 0 {
				delete(t.listeners, name)
			}
		})
	}
}

// ListenerCount returns the number of listeners registered for name.
func (t *EventTarget) ListenerCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[name])
}

// Dispatch delivers detail to every listener of name, synchronously.
func (t *EventTarget) Dispatch(name, detail string) {
	t.mu.Lock()
	ls := append([]listener(nil), t.listeners[name]...)
	t.mu.Unlock()

	for _, l := range ls {
		l.fn(detail)
	}
}

// DispatchState encodes state the way the extension does and dispatches it.
func (t *EventTarget) DispatchState(name string, state core.WalletConnectionState) {
	detail, _ := json.Marshal(state)
	t.Dispatch(name, string(detail))
}
