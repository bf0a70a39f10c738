package live

import (
	"context"
	"encoding/json"
)

// Handler consumes the payload of a named push event.
type Handler func(payload json.RawMessage)

// Channel is an abstract bidirectional push connection for one logical
// topic. The engine only depends on this contract; the concrete transport
// (websocket here, test doubles in _test files) is injected at construction.
type Channel interface {
	// Connect opens the connection and starts delivering events. The
	// implementation keeps reconnecting on transport failure until Close.
	Connect(ctx context.Context) error

	// Close tears the connection down permanently. No handler fires after
	// Close returns.
	Close() error

	// On registers a handler for a named event. Must be called before
	// Connect.
	On(event string, h Handler)

	// JoinRoom asks the server to scope delivery to the given room. Purely
	// a fan-out optimization: consumers must tolerate events for rooms they
	// never joined.
	JoinRoom(room string) error

	// OnConnected and OnDisconnected observe connection lifecycle, covering
	// reconnects. Used by the engine to re-join the active room.
	OnConnected(f func())
	OnDisconnected(f func())
}
