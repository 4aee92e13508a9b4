// Package call implements the request/response channel over a framed stream:
// the client writes request frames tagged with correlation IDs and resolves
// the matching pending entry when a response frame arrives. Per the bridge's
// uniform failure convention, Send resolves only on code 200 and rejects with
// an error-shaped value for every other code; nothing is ever retried.
package call

import (
	"context"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/ids"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/internal/runtime/wire"
	"github.com/supportcompanion/companion/transport"
)

func init() {
	transport.Register(transport.CallCapabilities)
}

// Client is the requesting end.
type Client struct {
	conn   wire.Conn
	logger logging.ServiceLogger

	mu      sync.Mutex
	pending map[string]chan *message.Response
	closed  bool
}

// NewClient attaches a client to the connection and starts its reader.
func NewClient(conn wire.Conn, logger logging.ServiceLogger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[string]chan *message.Response),
	}
	go c.readLoop()
	return c
}

// Request writes the request and awaits the correlated response, whatever
// its code. It implements the awaited forwarding capability.
func (c *Client) Request(ctx context.Context, req *message.Request) (*message.Response, error) {
	req.Check()
	if req.ID == message.DefaultID {
		req.ID = ids.CreateULID()
	}

	ch := make(chan *message.Response, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.ErrConnClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := wire.WriteJSON(c.conn, req); err != nil {
		return nil, err
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.ErrConnClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send routes by name and resolves the success payload. A response carrying
// any code other than 200 rejects with a *message.RouteError preserving the
// original message and category.
func (c *Client) Send(ctx context.Context, name string, params any) (any, error) {
	resp, err := c.Request(ctx, message.NewRequest(name, params))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// Close tears the connection down and fails all pending requests.
func (c *Client) Close() error {
	c.fail()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		var resp message.Response
		if err := wire.ReadJSON(c.conn, &resp); err != nil {
			c.fail()
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.Ref]
		if ok {
			delete(c.pending, resp.Ref)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Trace("uncorrelated response dropped", logging.LogFields{"ref": resp.Ref})
			continue
		}
		ch <- &resp
	}
}

func (c *Client) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Server is the answering end: it routes each incoming request into the
// endpoint and writes the response back tagged with the request's ID.
type Server struct {
	conn   wire.Conn
	ep     *endpoint.Endpoint
	logger logging.ServiceLogger
	done   chan struct{}
}

// Serve attaches a server to the connection and starts routing.
func Serve(conn wire.Conn, ep *endpoint.Endpoint, logger logging.ServiceLogger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{conn: conn, ep: ep, logger: logger, done: make(chan struct{})}
	go s.readLoop()
	return s
}

// Done is closed when the stream ends and the server stops routing.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Close tears the connection down.
func (s *Server) Close() error {
	return s.conn.Close()
}

func (s *Server) readLoop() {
	defer close(s.done)
	for {
		var req message.Request
		if err := wire.ReadJSON(s.conn, &req); err != nil {
			return
		}
		resp := s.ep.Route(context.Background(), &req, s)
		if resp == nil {
			// Silent or async request: nothing goes back.
			continue
		}
		tagged := *resp
		tagged.Ref = req.ID
		if err := wire.WriteJSON(s.conn, &tagged); err != nil {
			s.logger.Error("failed to write response", err, logging.LogFields{"route": req.Name})
			return
		}
	}
}
