// Package port binds an endpoint to a long-lived bidirectional framed
// stream. Incoming requests are routed into the endpoint; if the router
// yields a value, nothing is pushed back automatically. Callers that need
// replies must use the call adapter instead.
package port

import (
	"context"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/internal/runtime/wire"
	"github.com/supportcompanion/companion/transport"
)

func init() {
	transport.Register(transport.PortCapabilities)
}

// Port is one end of the stream. Frames carry bare request objects.
type Port struct {
	conn   wire.Conn
	ep     *endpoint.Endpoint
	logger logging.ServiceLogger

	mu     sync.Mutex
	closed bool
}

// Attach starts routing incoming frames from the connection into the
// endpoint and returns the port for outbound posts.
func Attach(conn wire.Conn, ep *endpoint.Endpoint, logger logging.ServiceLogger) *Port {
	if logger == nil {
		logger = logging.Nop()
	}
	p := &Port{conn: conn, ep: ep, logger: logger}
	go p.readLoop()
	return p
}

// Post writes the request as a single frame. There is no reply.
func (p *Port) Post(_ context.Context, req *message.Request) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.ErrConnClosed
	}
	return wire.WriteJSON(p.conn, req.Check())
}

// Close tears the stream down. The read loop exits on the resulting error.
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.conn.Close()
}

func (p *Port) readLoop() {
	for {
		var req message.Request
		if err := wire.ReadJSON(p.conn, &req); err != nil {
			p.mu.Lock()
			closed := p.closed
			p.closed = true
			p.mu.Unlock()
			if !closed {
				p.logger.Debug("port stream closed", logging.LogFields{"error": err.Error()})
			}
			return
		}
		if p.ep == nil {
			continue
		}
		// Route and drop the result; port channels never auto-reply.
		p.ep.Route(context.Background(), &req, p)
	}
}
