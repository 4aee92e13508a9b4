// Package client implements the page-embeddable contract: a thin requester
// resolving on code 200, push-route subscription, and the literal identity
// probe pages use to detect the companion.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/events"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/transport"
)

// ProductName is the identity string Version checks against.
const ProductName = "Support Companion"

// Client talks to the bridge through any requesting channel: the in-process
// channel side, the call client, or the native host handle.
type Client struct {
	requester transport.Requester
	bus       *events.Bus
	logger    logging.ServiceLogger

	mu   sync.Mutex
	subs map[string]func()
}

// New builds a client over the given requester. The bus is optional; without
// it, On and Off are no-ops.
func New(requester transport.Requester, bus *events.Bus, logger logging.ServiceLogger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		requester: requester,
		bus:       bus,
		logger:    logger,
		subs:      make(map[string]func()),
	}
}

// Send routes a request and resolves its success payload. The route argument
// is either a route name string or a pre-built *message.Request; params are
// ignored in the latter case. Any response code other than 200 rejects with
// a *message.RouteError carrying the original message and category.
func (c *Client) Send(ctx context.Context, route any, params any) (any, error) {
	var req *message.Request
	switch r := route.(type) {
	case string:
		req = message.NewRequest(r, params)
	case *message.Request:
		req = r
	default:
		return nil, fmt.Errorf("companion: route must be a name or a request, got %T", route)
	}

	resp, err := c.requester.Request(ctx, req.Check())
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

// On subscribes a handler to a push route. Re-subscribing a route replaces
// the previous handler.
func (c *Client) On(route string, fn func(payload []byte)) error {
	if c.bus == nil {
		return nil
	}
	cancel, err := c.bus.Subscribe(context.Background(), route, fn)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if prev, ok := c.subs[route]; ok {
		prev()
	}
	c.subs[route] = cancel
	c.mu.Unlock()
	return nil
}

// OnJSON subscribes a typed handler: each payload is decoded into a fresh T.
func OnJSON[T any](c *Client, route string, fn func(T)) error {
	return c.On(route, func(payload []byte) {
		var v T
		if err := jsoncodec.Unmarshal(payload, &v); err != nil {
			c.logger.Error("undecodable push payload dropped", err, logging.LogFields{"route": route})
			return
		}
		fn(v)
	})
}

// Off removes the handler for a push route.
func (c *Client) Off(route string) {
	c.mu.Lock()
	cancel, ok := c.subs[route]
	if ok {
		delete(c.subs, route)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Version probes the bridge for presence and returns the reported product
// name. With a check argument it additionally performs a literal string
// identity check against "Support Companion".
func (c *Client) Version(ctx context.Context, check ...string) (string, bool, error) {
	content, err := c.Send(ctx, "background.version", nil)
	if err != nil {
		return "", false, err
	}
	var info struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	if err := jsoncodec.Remarshal(&info, content); err != nil {
		return "", false, err
	}
	if len(check) == 0 {
		return info.Name, info.Name == ProductName, nil
	}
	return info.Name, check[0] == ProductName, nil
}

// Close drops all push subscriptions.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for route, cancel := range c.subs {
		cancel()
		delete(c.subs, route)
	}
	return nil
}
