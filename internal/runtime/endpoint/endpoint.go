// Package endpoint implements the routing table at the heart of the bridge.
// An Endpoint resolves incoming requests to handler functions and invokes
// them uniformly regardless of which transport the request arrived on.
// Routes that no local handler claims can be piped to a joined forwarder,
// typically the endpoint on the other side of a transport.
package endpoint

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

// Call carries everything a handler receives for a single request: the
// normalized request itself and the transport source it arrived from. Source
// is nil for locally originated calls.
type Call struct {
	Request *message.Request
	Source  any
}

// Params returns the opaque request payload.
func (c *Call) Params() any { return c.Request.Params }

// Bind decodes the request params into the supplied pointer.
func (c *Call) Bind(v any) error { return c.Request.Bind(v) }

// ParamAt returns the i-th element of an array-shaped params payload.
func (c *Call) ParamAt(i int) any { return c.Request.ParamAt(i) }

// Handler processes a routed request. Returning a *message.Response passes it
// through unchanged; returning any other value wraps it as a Success. A
// *message.FailureError converts to a 403 response, any other error to a 500.
type Handler func(ctx context.Context, call *Call) (any, error)

// Middleware decorates a handler. The chain is applied to every resolved
// handler, including pipe-synthesized ones.
type Middleware func(next Handler) Handler

// Requester is the awaited forwarding capability. When a pipe resolves and
// the forwarder implements both Requester and Poster, Requester is preferred.
type Requester interface {
	Request(ctx context.Context, req *message.Request) (*message.Response, error)
}

// Poster is the fire-and-forget forwarding capability.
type Poster interface {
	Post(ctx context.Context, req *message.Request) error
}

// Pipe declares that a route should be forwarded instead of handled locally.
// A pipe with a nil Match forwards the exact route Name; a pipe with a Match
// predicate forwards every route the predicate accepts. Name doubles as the
// removal key in both cases.
type Pipe struct {
	Name  string
	Match func(name string) bool
}

// Exact builds a pipe forwarding one exact route name.
func Exact(name string) Pipe { return Pipe{Name: name} }

// Match builds a predicate pipe. The name is only used for removal.
func Match(name string, fn func(string) bool) Pipe { return Pipe{Name: name, Match: fn} }

// Endpoint is the routing table: an exact-match handler map, two ordered pipe
// registries, and a single forwarder reference. The zero value is not usable;
// construct with New.
type Endpoint struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	exact     []Pipe
	matchers  []Pipe
	forwarder any
	chain     []Middleware
	logger    logging.ServiceLogger
}

// New constructs an empty endpoint logging through the supplied logger. A nil
// logger silently discards.
func New(logger logging.ServiceLogger) *Endpoint {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Endpoint{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register stores the handler under the exact route name. Registering a nil
// handler fails with ErrInvalidHandler; registering over an existing name
// replaces it.
func (e *Endpoint) Register(name string, h Handler) error {
	if name == "" {
		return errors.ErrRouteNameRequired
	}
	if h == nil {
		return errors.ErrInvalidHandler
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
	return nil
}

// Unregister removes the handler if present. Removing an absent name is a
// no-op.
func (e *Endpoint) Unregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, name)
}

// AddPipe appends pipes to their respective ordered registries. Resolution
// tries exact pipes before predicate pipes; within a registry, first
// registered wins.
func (e *Endpoint) AddPipe(pipes ...Pipe) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range pipes {
		if p.Name == "" && p.Match == nil {
			continue
		}
		if p.Match == nil {
			e.exact = append(e.exact, p)
		} else {
			e.matchers = append(e.matchers, p)
		}
	}
}

// RemovePipe removes pipes by name from both registries. Removing a
// non-existent name is a silent no-op.
func (e *Endpoint) RemovePipe(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, name := range names {
		e.exact = removeByName(e.exact, name)
		e.matchers = removeByName(e.matchers, name)
	}
}

func removeByName(pipes []Pipe, name string) []Pipe {
	out := pipes[:0]
	for _, p := range pipes {
		if p.Name != name {
			out = append(out, p)
		}
	}
	return out
}

// Join sets mutual forwarder references: each endpoint becomes the other's
// forwarder. The relationship is symmetric and exactly one level deep; no
// transitive chains are resolved.
func (e *Endpoint) Join(other *Endpoint) {
	if other == nil {
		return
	}
	e.SetForwarder(other)
	other.SetForwarder(e)
}

// SetForwarder replaces the forwarder reference. A forwarder that implements
// neither Requester nor Poster (including nil) makes pipe-resolved calls
// return nothing rather than error.
func (e *Endpoint) SetForwarder(f any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.forwarder = f
}

// Forwarder returns the current forwarder reference.
func (e *Endpoint) Forwarder() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forwarder
}

// Use appends middleware to the chain. Middleware added first runs outermost.
func (e *Endpoint) Use(mw ...Middleware) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chain = append(e.chain, mw...)
}

// Route resolves the request to a handler and invokes it. Resolution order is
// exact handler, exact pipe, predicate pipe; no match yields a 404 Unknown
// response. Handler errors and panics are converted to responses at this
// boundary and never propagate to the caller. A Silent request executes its
// handler but returns nil; an Async request returns nil without awaiting.
func (e *Endpoint) Route(ctx context.Context, req *message.Request, source any) *message.Response {
	if req == nil {
		return message.Unknown("")
	}
	req.Check()

	h := e.resolve(req.Name)
	if h == nil {
		e.logger.Trace("no handler for route", logging.LogFields{"route": req.Name})
		if req.Silent || req.Async {
			return nil
		}
		return message.Unknown(req.Name)
	}
	h = e.wrap(h)
	call := &Call{Request: req, Source: source}

	if req.Async {
		e.invokeAsync(ctx, h, call)
		return nil
	}
	if req.Delay > 0 {
		if err := waitDelay(ctx, req.Delay); err != nil {
			return message.ScriptError(err)
		}
	}
	resp := e.invoke(ctx, h, call)
	if req.Silent {
		return nil
	}
	return resp
}

// Request routes the request locally and returns the response. It makes a
// joined endpoint usable as an awaited forwarder.
func (e *Endpoint) Request(ctx context.Context, req *message.Request) (*message.Response, error) {
	return e.Route(ctx, req, nil), nil
}

// Post routes the request locally, discarding any result. It makes a joined
// endpoint usable as a fire-and-forget forwarder.
func (e *Endpoint) Post(ctx context.Context, req *message.Request) error {
	e.Route(ctx, req, nil)
	return nil
}

func (e *Endpoint) resolve(name string) Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.handlers[name]; ok {
		return h
	}
	for _, p := range e.exact {
		if p.Name == name {
			return e.pipeHandler(name)
		}
	}
	for _, p := range e.matchers {
		if p.Match(name) {
			return e.pipeHandler(name)
		}
	}
	return nil
}

// pipeHandler synthesizes a forwarding handler. The received call is
// repackaged into a fresh request and handed to the forwarder, preferring the
// awaited capability over the fire-and-forget one.
func (e *Endpoint) pipeHandler(name string) Handler {
	return func(ctx context.Context, call *Call) (any, error) {
		fwd := e.Forwarder()
		req := &message.Request{
			Name:   name,
			Params: call.Request.Params,
			ID:     call.Request.ID,
			Async:  call.Request.Async,
		}
		switch f := fwd.(type) {
		case Requester:
			return f.Request(ctx, req.Check())
		case Poster:
			return (*message.Response)(nil), f.Post(ctx, req.Check())
		default:
			// No forwarding capability: the pipe yields nothing, not an error.
			return (*message.Response)(nil), nil
		}
	}
}

func (e *Endpoint) wrap(h Handler) Handler {
	e.mu.Lock()
	chain := make([]Middleware, len(e.chain))
	copy(chain, e.chain)
	e.mu.Unlock()
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// invoke runs the handler and converts its outcome into a response. Panics
// are recovered here so no handler failure crosses a transport boundary as a
// language-level error.
func (e *Endpoint) invoke(ctx context.Context, h Handler, call *Call) (resp *message.Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked", nil, logging.LogFields{
				"route": call.Request.Name,
				"panic": r,
			})
			resp = message.ScriptError(r)
		}
	}()

	result, err := h(ctx, call)
	if err != nil {
		var fe *message.FailureError
		if stderrors.As(err, &fe) {
			return message.Failure(fe.Message, fe.Type)
		}
		return message.ScriptError(err)
	}
	if r, ok := result.(*message.Response); ok {
		return r
	}
	return message.Success(result)
}

func (e *Endpoint) invokeAsync(ctx context.Context, h Handler, call *Call) {
	ctx = context.WithoutCancel(ctx)
	delay := call.Request.Delay
	go func() {
		if delay > 0 {
			time.Sleep(time.Duration(delay) * time.Millisecond)
		}
		e.invoke(ctx, h, call)
	}()
}

func waitDelay(ctx context.Context, delayMs int) error {
	timer := time.NewTimer(time.Duration(delayMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
