// Package network is the message-bus boundary the dispatch core talks
// through: named connections, byte buffers in and out, no awareness of
// what's inside them. The specification treats this as an external
// collaborator; this package supplies the interface plus two concrete
// implementations — an in-process bus for tests and the reference TRB,
// and a gRPC-backed one for real deployments.
package network

import (
	"context"
	"time"
)

// Manager is the network boundary used by the dispatcher and the token
// handler. Implementations must be safe for concurrent use: SendTo is
// called from the dispatcher thread while callbacks registered via
// RegisterCallback fire on arbitrary network threads.
type Manager interface {
	// SendTo delivers payload to the named connection, failing if it
	// cannot be sent within timeout.
	SendTo(ctx context.Context, name string, payload []byte, timeout time.Duration) error

	// StartListening begins accepting inbound messages addressed to
	// name.
	StartListening(name string) error

	// StopListening stops accepting inbound messages for name.
	StopListening(name string) error

	// RegisterCallback installs fn to be invoked with the raw payload of
	// every inbound message addressed to name. Only one callback may be
	// registered per name at a time.
	RegisterCallback(name string, fn func([]byte)) error

	// ClearCallback removes whatever callback is registered for name.
	ClearCallback(name string) error
}
