package network

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalBus is an in-process Manager: SendTo delivers straight to
// whatever callback is registered for the destination name, on a new
// goroutine, mirroring how a real network thread would invoke it
// concurrently with the dispatcher. Used by the tests (including the
// ReferenceTRB-driven integration tests) so the full
// dispatch/token-handler protocol can run without sockets.
type LocalBus struct {
	mu        sync.RWMutex
	listening map[string]bool
	callbacks map[string]func([]byte)
}

// NewLocalBus creates an empty bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{
		listening: make(map[string]bool),
		callbacks: make(map[string]func([]byte)),
	}
}

// SendTo starts the callback registered for name on its own goroutine
// and returns at once, without waiting for the callback; timeout is
// unused. It returns an error if no one is listening on name or no
// callback is registered for it.
func (b *LocalBus) SendTo(ctx context.Context, name string, payload []byte, timeout time.Duration) error {
	b.mu.RLock()
	listening := b.listening[name]
	cb := b.callbacks[name]
	b.mu.RUnlock()

	if !listening {
		return fmt.Errorf("network: no listener on %q", name)
	}
	if cb == nil {
		return fmt.Errorf("network: no callback registered for %q", name)
	}

	go cb(payload)
	return nil
}

// StartListening marks name as accepting inbound messages.
func (b *LocalBus) StartListening(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listening[name] = true
	return nil
}

// StopListening marks name as no longer accepting inbound messages.
func (b *LocalBus) StopListening(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listening, name)
	return nil
}

// RegisterCallback installs fn for name.
func (b *LocalBus) RegisterCallback(name string, fn func([]byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[name] = fn
	return nil
}

// ClearCallback removes the callback for name.
func (b *LocalBus) ClearCallback(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.callbacks, name)
	return nil
}

// Deliver is a test/demo hook letting a simulated worker push a message
// (e.g. a completion token) to whatever is listening on name, the same
// way SendTo does from the orchestrator's side.
func (b *LocalBus) Deliver(name string, payload []byte) error {
	return b.SendTo(context.Background(), name, payload, 0)
}
