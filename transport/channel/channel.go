// Package channel implements the in-process bridge between two endpoints,
// the analogue of the page and content scripts sharing a document: the sender
// drops a request into the peer's inbox together with a one-shot reply cell,
// and the cell is torn down the moment the response lands.
package channel

import (
	"context"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/transport"
)

func init() {
	transport.Register(transport.ChannelCapabilities)
}

type delivery struct {
	req   *message.Request
	reply chan *message.Response // nil for fire-and-forget deliveries
}

// Side is one end of an in-process bridge. It satisfies both forwarding
// capabilities, so a Side can be set as an endpoint's forwarder directly.
type Side struct {
	local  *endpoint.Endpoint
	peer   *Side
	inbox  chan delivery
	logger logging.ServiceLogger

	once sync.Once
	done chan struct{}
}

// Bridge owns the two joined sides.
type Bridge struct {
	a, b *Side
}

// New wires two endpoints back to back. Each side routes the requests the
// other side sends; a single inbox goroutine per side serializes handler
// execution the way a single-threaded page does.
func New(a, b *endpoint.Endpoint, logger logging.ServiceLogger) *Bridge {
	if logger == nil {
		logger = logging.Nop()
	}
	sa := &Side{local: a, inbox: make(chan delivery, 16), logger: logger, done: make(chan struct{})}
	sb := &Side{local: b, inbox: make(chan delivery, 16), logger: logger, done: make(chan struct{})}
	sa.peer = sb
	sb.peer = sa
	go sa.run()
	go sb.run()
	return &Bridge{a: sa, b: sb}
}

// SideA returns the side routing into the first endpoint.
func (b *Bridge) SideA() *Side { return b.a }

// SideB returns the side routing into the second endpoint.
func (b *Bridge) SideB() *Side { return b.b }

// Close stops both inbox loops. In-flight sends fail with ErrConnClosed.
func (b *Bridge) Close() error {
	b.a.close()
	b.b.close()
	return nil
}

// Request delivers the request to the peer endpoint and awaits the response
// through a one-shot reply cell.
func (s *Side) Request(ctx context.Context, req *message.Request) (*message.Response, error) {
	reply := make(chan *message.Response, 1)
	if err := s.deliver(ctx, delivery{req: req, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-s.peer.done:
		return nil, errors.ErrConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post delivers the request without a reply cell.
func (s *Side) Post(ctx context.Context, req *message.Request) error {
	return s.deliver(ctx, delivery{req: req})
}

func (s *Side) deliver(ctx context.Context, d delivery) error {
	select {
	case <-s.peer.done:
		return errors.ErrConnClosed
	default:
	}
	select {
	case s.peer.inbox <- d:
		return nil
	case <-s.peer.done:
		return errors.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Side) run() {
	for {
		select {
		case <-s.done:
			return
		case d := <-s.inbox:
			resp := s.local.Route(context.Background(), d.req, s)
			if d.reply != nil {
				d.reply <- resp
			}
		}
	}
}

func (s *Side) close() {
	s.once.Do(func() { close(s.done) })
}
