package runtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supportcompanion/companion/internal/runtime/config"
	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/events"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/internal/runtime/services"
	"github.com/supportcompanion/companion/internal/runtime/wire"
	"github.com/supportcompanion/companion/transport/native"
)

// ProductName is the literal identity the page client probes for.
const ProductName = "Support Companion"

// Version is the bridge release version reported by background.version.
const Version = "2.0.0"

// BridgeDependencies holds the optional collaborators the Bridge can use.
// Leave fields nil to use defaults or skip the related wiring.
type BridgeDependencies struct {
	// Downloader carries out download jobs. Defaults to an HTTP downloader
	// writing under the configured download directory.
	Downloader services.Downloader

	// NativeDial establishes the native host connection. Ignored when
	// Native is supplied directly.
	NativeDial native.DialFunc

	// Native is a pre-built native host handle.
	Native *native.Host

	// Hooks observe request lifecycle transitions.
	Hooks *RequestHooks

	// Middlewares are appended after the default chain.
	Middlewares []Registration

	// DisableDefaultMiddlewares skips the default chain when true.
	DisableDefaultMiddlewares bool

	// MetricsEnabled turns on Prometheus instrumentation.
	MetricsEnabled bool

	// MetricsAddr serves /metrics when non-empty, e.g. ":9090".
	MetricsAddr string

	// Opener opens a directory in the platform file browser. Defaults to
	// the system opener.
	Opener func(path string) error
}

// Bridge is the background side of the companion: it owns the routing
// endpoint, the native host connection, the job managers, and the push event
// bus, and re-applies persisted options wholesale whenever they change.
type Bridge struct {
	Logger logging.ServiceLogger

	store     *config.Store
	ep        *endpoint.Endpoint
	bus       *events.Bus
	native    *native.Host
	downloads *services.DownloadManager
	prints    *services.PrintManager
	pos       *services.POSManager
	opener    func(path string) error

	metricsEnabled bool
	metricsAddr    string
	gate           *logging.ConsoleGate

	mu      sync.Mutex
	dir     string
	started bool
	cancel  context.CancelFunc
}

// NewBridge wires a bridge from persisted options. Register additional
// routes on Endpoint() before calling Start.
func NewBridge(store *config.Store, log logging.ServiceLogger, deps BridgeDependencies) (*Bridge, error) {
	if store == nil {
		return nil, errors.ErrOptionsRequired
	}
	if log == nil {
		log = logging.Nop()
	}
	opts := store.Load()

	// Debug and trace output across the whole bridge follows the persisted
	// console option; everything below logs through the gate.
	gate := logging.NewConsoleGate(log, opts.Console)
	log = gate

	b := &Bridge{
		Logger:         log,
		store:          store,
		bus:            events.NewBus(log),
		metricsEnabled: deps.MetricsEnabled,
		metricsAddr:    deps.MetricsAddr,
		gate:           gate,
		dir:            opts.DownloadDir,
	}
	b.ep = endpoint.New(log)

	b.native = deps.Native
	if b.native == nil {
		dial := deps.NativeDial
		if dial == nil {
			dial = func(context.Context) (wire.Conn, error) {
				return nil, errors.ErrNotConnected
			}
		}
		b.native = native.NewHost(dial, b.ep, log)
	}

	dl := deps.Downloader
	if dl == nil {
		// The manager already prefixes the configured download directory
		// onto every filename, so the fallback downloader has no root of
		// its own.
		dl = services.NewHTTPDownloader("", nil, log)
	}
	var err error
	b.downloads, err = services.NewDownloadManager(dl, opts, b.bus, log)
	if err != nil {
		return nil, err
	}
	b.prints, err = services.NewPrintManager(b.native, opts, b.bus, log)
	if err != nil {
		return nil, err
	}
	b.pos, err = services.NewPOSManager(b.native, opts, log)
	if err != nil {
		return nil, err
	}

	b.opener = deps.Opener
	if b.opener == nil {
		b.opener = defaultOpener
	}

	if err := b.installMiddlewares(deps); err != nil {
		return nil, err
	}
	if err := b.registerRoutes(); err != nil {
		return nil, err
	}

	// Every companion route without a local handler pipes to the native
	// host: printers.list, serialPorts.list, epayment.*, and whatever future
	// hosts add.
	b.ep.AddPipe(endpoint.Match("companion", func(name string) bool {
		return strings.HasPrefix(name, "companion.")
	}))
	b.ep.SetForwarder(b.native)

	store.Subscribe(b.applyOptions)
	return b, nil
}

// Endpoint exposes the background routing table.
func (b *Bridge) Endpoint() *endpoint.Endpoint { return b.ep }

// Bus exposes the push event bus.
func (b *Bridge) Bus() *events.Bus { return b.bus }

// Native exposes the native host handle.
func (b *Bridge) Native() *native.Host { return b.native }

// Downloads exposes the download manager.
func (b *Bridge) Downloads() *services.DownloadManager { return b.downloads }

// Route routes a locally originated request.
func (b *Bridge) Route(ctx context.Context, req *message.Request) *message.Response {
	return b.ep.Route(ctx, req, nil)
}

// Request implements the awaited forwarding capability over the background
// endpoint, so a Bridge can be joined to other endpoints directly.
func (b *Bridge) Request(ctx context.Context, req *message.Request) (*message.Response, error) {
	return b.ep.Request(ctx, req)
}

// Start runs the background loops until the context is cancelled: the option
// watcher, the download event pump, and the optional metrics server.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return fmt.Errorf("companion: bridge already started")
	}
	b.started = true
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	if err := b.store.Watch(); err != nil {
		return err
	}
	go b.downloads.Run(ctx)

	if b.metricsEnabled && b.metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			b.Logger.Info("serving metrics", logging.LogFields{"addr": b.metricsAddr})
			if err := http.ListenAndServe(b.metricsAddr, mux); err != nil {
				b.Logger.Error("metrics server stopped", err, nil)
			}
		}()
	}

	<-ctx.Done()
	return b.shutdown()
}

// Stop cancels a running bridge.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Bridge) shutdown() error {
	b.store.Close()
	b.native.Disconnect()
	return b.bus.Close()
}

func (b *Bridge) installMiddlewares(deps BridgeDependencies) error {
	var registrations []Registration
	if !deps.DisableDefaultMiddlewares {
		registrations = DefaultMiddlewares()
	}
	if deps.Hooks != nil {
		registrations = append(registrations, HooksMiddleware(*deps.Hooks))
	}
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		mw := reg.Middleware
		if reg.Builder != nil {
			built, err := reg.Builder(b)
			if err != nil {
				name := reg.Name
				if name == "" {
					name = "anonymous_middleware"
				}
				return fmt.Errorf("companion: failed to install middleware %s: %w", name, err)
			}
			mw = built
		}
		if mw != nil {
			b.ep.Use(mw)
		}
	}
	return nil
}

// applyOptions re-applies a full option snapshot. It is invoked once at
// construction and again for every change notification.
func (b *Bridge) applyOptions(opts *config.Options) {
	b.gate.SetEnabled(opts.Console)
	b.mu.Lock()
	b.dir = opts.DownloadDir
	b.mu.Unlock()

	b.downloads.ApplyOptions(opts)
	b.prints.ApplyOptions(opts)
	b.pos.ApplyOptions(opts)
	b.Logger.Debug("options applied", logging.LogFields{
		"console":     opts.Console,
		"downloadDir": opts.DownloadDir,
		"printer":     opts.Printer.Default,
		"pos":         opts.POS.Activate,
	})
}

func (b *Bridge) downloadDir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dir
}
