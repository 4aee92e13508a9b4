// Package native manages the connection to the native messaging host: a
// separate process spoken to over stdio with length-prefixed JSON frames.
// Both delivery styles are supported: fire-and-forget posts carrying the
// request Async flag, and correlated requests resolving on the 200-is-success
// convention. Disconnection zeroes the connection state so IsConnected
// reflects reality; reconnecting re-establishes the reader from scratch.
package native

import (
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/ids"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/internal/runtime/wire"
	"github.com/supportcompanion/companion/transport"
)

func init() {
	transport.Register(transport.NativeCapabilities)
}

// DialFunc establishes a fresh connection to the host process. It is called
// on every Connect so a reconnect starts from a clean slate.
type DialFunc func(ctx context.Context) (wire.Conn, error)

// Host is the background side of the native messaging channel.
type Host struct {
	dial   DialFunc
	local  *endpoint.Endpoint // receives host-initiated requests; may be nil
	logger logging.ServiceLogger

	mu        sync.Mutex
	conn      wire.Conn
	pending   map[string]chan *message.Response
	connected bool
	gen       int // connection generation, bumps on every connect
}

// NewHost builds an unconnected host handle. The local endpoint receives
// host-initiated requests (push events); pass nil to drop them.
func NewHost(dial DialFunc, local *endpoint.Endpoint, logger logging.ServiceLogger) *Host {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Host{dial: dial, local: local, logger: logger}
}

// Connect dials the host and starts the reader. Connecting while connected
// is a no-op.
func (h *Host) Connect(ctx context.Context) error {
	h.mu.Lock()
	if h.connected {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	conn, err := h.dial(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conn = conn
	h.pending = make(map[string]chan *message.Response)
	h.connected = true
	h.gen++
	gen := h.gen
	h.mu.Unlock()

	go h.readLoop(conn, gen)
	h.logger.Info("native host connected", nil)
	return nil
}

// Disconnect closes the connection and zeroes all connection state. Pending
// requests fail with ErrNotConnected.
func (h *Host) Disconnect() error {
	h.mu.Lock()
	conn := h.conn
	h.reset()
	h.mu.Unlock()
	if conn == nil {
		return nil
	}
	h.logger.Info("native host disconnected", nil)
	return conn.Close()
}

// IsConnected reports whether the channel is currently established.
func (h *Host) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

// Post delivers a fire-and-forget request with the Async flag set.
func (h *Host) Post(_ context.Context, req *message.Request) error {
	h.mu.Lock()
	conn := h.conn
	connected := h.connected
	h.mu.Unlock()
	if !connected {
		return errors.ErrNotConnected
	}
	req.Check()
	req.Async = true
	return wire.WriteJSON(conn, req)
}

// Request delivers a request and awaits the correlated response.
func (h *Host) Request(ctx context.Context, req *message.Request) (*message.Response, error) {
	req.Check()
	if req.ID == message.DefaultID {
		req.ID = ids.CreateULID()
	}

	ch := make(chan *message.Response, 1)
	h.mu.Lock()
	if !h.connected {
		h.mu.Unlock()
		return nil, errors.ErrNotConnected
	}
	conn := h.conn
	h.pending[req.ID] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.pending, req.ID)
		h.mu.Unlock()
	}()

	if err := wire.WriteJSON(conn, req); err != nil {
		return nil, err
	}
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.ErrNotConnected
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send routes by name and resolves the success payload, rejecting with a
// *message.RouteError for every non-200 code.
func (h *Host) Send(ctx context.Context, name string, params any) (any, error) {
	resp, err := h.Request(ctx, message.NewRequest(name, params))
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

// reset zeroes connection state. Callers hold the lock.
func (h *Host) reset() {
	for id, ch := range h.pending {
		close(ch)
		delete(h.pending, id)
	}
	h.conn = nil
	h.connected = false
}

// incomingFrame distinguishes host responses from host-initiated requests: a
// frame with a code is a response, a frame with a name is a request.
type incomingFrame struct {
	Code message.Code `json:"code"`
	Name string       `json:"name"`
	ID   string       `json:"id"`
}

func (h *Host) readLoop(conn wire.Conn, gen int) {
	for {
		data, err := conn.ReadFrame()
		if err != nil {
			h.mu.Lock()
			// Only zero state if this reader belongs to the live connection;
			// a stale reader from before a reconnect must not clobber it.
			if h.gen == gen && h.connected {
				h.reset()
				h.logger.Debug("native host stream closed", logging.LogFields{"error": err.Error()})
			}
			h.mu.Unlock()
			return
		}

		var probe incomingFrame
		if err := jsoncodec.Unmarshal(data, &probe); err != nil {
			h.logger.Error("undecodable native frame dropped", err, nil)
			continue
		}

		if probe.Code != 0 {
			var resp message.Response
			if err := jsoncodec.Unmarshal(data, &resp); err != nil {
				continue
			}
			h.dispatch(&resp)
			continue
		}
		if probe.Name != "" && h.local != nil {
			var req message.Request
			if err := jsoncodec.Unmarshal(data, &req); err != nil {
				continue
			}
			h.local.Route(context.Background(), &req, h)
		}
	}
}

func (h *Host) dispatch(resp *message.Response) {
	h.mu.Lock()
	ch, ok := h.pending[resp.Ref]
	if ok {
		delete(h.pending, resp.Ref)
	}
	h.mu.Unlock()
	if !ok {
		h.logger.Trace("uncorrelated native response dropped", logging.LogFields{"ref": resp.Ref})
		return
	}
	ch <- resp
}

type stdioConn struct {
	out io.ReadCloser
	in  io.WriteCloser
	cmd *exec.Cmd
}

func (s *stdioConn) Read(p []byte) (int, error)  { return s.out.Read(p) }
func (s *stdioConn) Write(p []byte) (int, error) { return s.in.Write(p) }

func (s *stdioConn) Close() error {
	s.in.Close()
	s.out.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

// Command returns a DialFunc that launches the host executable and frames
// its stdio, the way the browser launches a native messaging host.
func Command(name string, args ...string) DialFunc {
	return func(_ context.Context) (wire.Conn, error) {
		cmd := exec.Command(name, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			stdin.Close()
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			stdout.Close()
			return nil, err
		}
		return wire.NewStreamConn(&stdioConn{out: stdout, in: stdin, cmd: cmd}), nil
	}
}

// Static returns a DialFunc handing out a pre-built connection, useful for
// tests and in-process hosts.
func Static(conn wire.Conn) DialFunc {
	return func(_ context.Context) (wire.Conn, error) {
		return conn, nil
	}
}
