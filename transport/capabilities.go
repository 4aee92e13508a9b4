package transport

// Capabilities describes what a channel adapter can do. Use this to
// introspect the available operations at runtime; the bridge answers
// `companion.capabilities` straight from the registry.
type Capabilities struct {
	// Name is the channel name the adapter registers under.
	Name string `json:"name"`

	// Version is the adapter version, when meaningful.
	Version string `json:"version,omitempty"`

	// SupportsReplies indicates the channel delivers correlated responses.
	// When false, callers needing replies must use a request/response
	// channel instead.
	SupportsReplies bool `json:"supportsReplies"`

	// SupportsPush indicates the channel can deliver peer-initiated
	// requests, not only responses to our own.
	SupportsPush bool `json:"supportsPush"`

	// SupportsReconnect indicates the channel can be re-established after a
	// disconnect without rebuilding the adapter.
	SupportsReconnect bool `json:"supportsReconnect"`

	// SupportsAsyncFlag indicates the channel honors the request Async flag
	// end to end.
	SupportsAsyncFlag bool `json:"supportsAsyncFlag"`

	// CrossProcess indicates the channel crosses a process boundary.
	CrossProcess bool `json:"crossProcess"`

	// MaxFrameSize is the maximum frame size in bytes (0 = unlimited).
	MaxFrameSize int64 `json:"maxFrameSize,omitempty"`
}

// Predefined capability sets for the shipped channels. Each adapter package
// registers its own set in init; these are exported so applications can
// register custom adapters with comparable baselines.
var (
	// ChannelCapabilities for the in-process endpoint bridge.
	ChannelCapabilities = Capabilities{
		Name:              "channel",
		SupportsReplies:   true,
		SupportsPush:      true,
		SupportsReconnect: false,
		SupportsAsyncFlag: true,
		CrossProcess:      false,
	}

	// PortCapabilities for the fire-and-forget stream adapter.
	PortCapabilities = Capabilities{
		Name:              "port",
		SupportsReplies:   false,
		SupportsPush:      true,
		SupportsReconnect: false,
		SupportsAsyncFlag: true,
		CrossProcess:      true,
		MaxFrameSize:      1048576,
	}

	// CallCapabilities for the request/response stream adapter.
	CallCapabilities = Capabilities{
		Name:              "call",
		SupportsReplies:   true,
		SupportsPush:      false,
		SupportsReconnect: false,
		SupportsAsyncFlag: false,
		CrossProcess:      true,
		MaxFrameSize:      1048576,
	}

	// NativeCapabilities for the native messaging host adapter.
	NativeCapabilities = Capabilities{
		Name:              "native",
		SupportsReplies:   true,
		SupportsPush:      true,
		SupportsReconnect: true,
		SupportsAsyncFlag: true,
		CrossProcess:      true,
		MaxFrameSize:      1048576,
	}

	// WebSocketCapabilities for the websocket wire implementation.
	WebSocketCapabilities = Capabilities{
		Name:              "websocket",
		SupportsReplies:   true,
		SupportsPush:      true,
		SupportsReconnect: false,
		SupportsAsyncFlag: true,
		CrossProcess:      true,
		MaxFrameSize:      1048576,
	}
)
