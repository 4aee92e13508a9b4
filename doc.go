// Package companion implements the Support Companion bridge: a request
// router that connects page-facing transports to local device services
// behind a single route namespace.
//
// At the center sits the Endpoint, a named-route registry. Each route maps a
// dotted name (for example "companion.document.download") to a handler
// returning an arbitrary payload or an error; the endpoint wraps the result
// into a coded Response:
//
//	200 success      payload in Content
//	403 failure      expected refusal with a human-readable message
//	404 unknown      no handler or pipe matched the route
//	500 scriptError  unexpected error or recovered panic
//
// Routes that no local handler claims can be piped onward: a pipe matches
// either an exact name or a predicate (typically a prefix) and forwards the
// request to whatever the endpoint is joined with, such as the native host.
// Resolution always prefers exact handlers, then exact pipes, then predicate
// pipes in registration order.
//
// Four channel flavors carry requests between parties:
//
//   - channel: two in-process endpoints joined through goroutine inboxes,
//     with request/reply and fire-and-forget sides.
//   - port: a long-lived framed connection carrying bare requests with no
//     replies, for one-way streams.
//   - call: single request, correlated response. The client resolves 200
//     payloads and rejects everything else with a RouteError.
//   - native: a host process reached over length-prefixed stdio frames, in
//     the framing browsers use for native messaging. The handle reconnects
//     on demand and routes host-initiated requests back into the local
//     endpoint.
//
// A websocket wrapper adapts the same framed wire to network peers.
//
// The Bridge assembles the full application: it loads persisted options,
// registers the background route surface (ping, version, echo, connect and
// disconnect, download, print, POS payment), installs the default middleware
// chain (correlation IDs, request logging, OpenTelemetry tracing, Prometheus
// metrics) and pumps download and print completions onto the event bus so
// pages can observe them as pushed topics.
//
// Construct one with a config store and a logger:
//
//	store, err := companion.NewStore(path, logger)
//	if err != nil { ... }
//	bridge, err := companion.NewBridge(store, logger, companion.BridgeDependencies{})
//	if err != nil { ... }
//	go bridge.Start(ctx)
//
//	resp := bridge.Route(ctx, companion.NewRequest("background.ping", nil))
//
// Pages embed the client package, which talks to the bridge through any
// requesting channel and exposes Send, On, Off and the Version identity
// probe.
//
// Most types in this file are aliases into internal packages; the root
// package is the supported import surface.
package companion
