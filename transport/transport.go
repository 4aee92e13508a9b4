// Package transport defines the shared contracts for the bridge's channel
// adapters. Each adapter lives in its own sub-package and registers its
// capabilities with the registry so the `companion.capabilities` route can
// introspect what the running bridge supports.
//
// Four channels ship with the bridge:
//   - channel: in-process bridge between two joined endpoints
//   - port: long-lived framed stream, fire-and-forget delivery
//   - call: request/response over a framed stream with correlation IDs
//   - native: stdio connection to the native messaging host
//
// plus a websocket implementation of the wire connection so port and call can
// cross process boundaries.
package transport

import (
	"context"

	"github.com/supportcompanion/companion/internal/runtime/message"
)

// Requester is implemented by adapters that can send a request and await its
// response.
type Requester interface {
	Request(ctx context.Context, req *message.Request) (*message.Response, error)
}

// Poster is implemented by adapters that deliver requests without awaiting a
// reply.
type Poster interface {
	Post(ctx context.Context, req *message.Request) error
}

// Connector is implemented by adapters whose channel can drop and be
// re-established. Disconnection is reported through the predicate, never as
// an exception from an unrelated call.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
}
