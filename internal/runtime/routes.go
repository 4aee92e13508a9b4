package runtime

import (
	"context"
	stderrors "errors"

	"github.com/skratchdot/open-golang/open"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/message"
	"github.com/supportcompanion/companion/transport"
)

// Background route surface consumed by content and page callers.
const (
	RoutePing             = "background.ping"
	RouteVersion          = "background.version"
	RouteEcho             = "background.echo"
	RouteCapabilities     = "companion.capabilities"
	RouteIsConnected      = "companion.isConnected"
	RouteConnect          = "companion.connect"
	RouteDisconnect       = "companion.disconnect"
	RouteDocumentDownload = "companion.document.download"
	RouteDocumentPrint    = "companion.document.print"
	RouteOpenDownloadDir  = "companion.location.open.download"
	RoutePOSPing          = "companion.pos.ping"
	RoutePOSProcess       = "companion.pos.process"
)

func defaultOpener(path string) error {
	return open.Run(path)
}

func (b *Bridge) registerRoutes() error {
	routes := map[string]endpoint.Handler{
		RoutePing:             b.handlePing,
		RouteVersion:          b.handleVersion,
		RouteEcho:             b.handleEcho,
		RouteCapabilities:     b.handleCapabilities,
		RouteIsConnected:      b.handleIsConnected,
		RouteConnect:          b.handleConnect,
		RouteDisconnect:       b.handleDisconnect,
		RouteDocumentDownload: b.handleDownload,
		RouteDocumentPrint:    b.handlePrint,
		RouteOpenDownloadDir:  b.handleOpenDownloadDir,
		RoutePOSPing:          b.handlePOSPing,
		RoutePOSProcess:       b.handlePOSProcess,
	}
	for name, h := range routes {
		if err := b.ep.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) handlePing(context.Context, *endpoint.Call) (any, error) {
	return "pong", nil
}

func (b *Bridge) handleVersion(context.Context, *endpoint.Call) (any, error) {
	return map[string]string{
		"name":    ProductName,
		"version": Version,
	}, nil
}

func (b *Bridge) handleEcho(_ context.Context, call *endpoint.Call) (any, error) {
	return call.Params(), nil
}

func (b *Bridge) handleCapabilities(context.Context, *endpoint.Call) (any, error) {
	return transport.DefaultRegistry.All(), nil
}

func (b *Bridge) handleIsConnected(context.Context, *endpoint.Call) (any, error) {
	return b.native.IsConnected(), nil
}

func (b *Bridge) handleConnect(ctx context.Context, _ *endpoint.Call) (any, error) {
	if err := b.native.Connect(ctx); err != nil {
		return nil, message.Failuref("native", "could not connect to native host: %v", err)
	}
	return b.native.IsConnected(), nil
}

func (b *Bridge) handleDisconnect(context.Context, *endpoint.Call) (any, error) {
	if err := b.native.Disconnect(); err != nil {
		return nil, err
	}
	return b.native.IsConnected(), nil
}

func (b *Bridge) handleDownload(ctx context.Context, call *endpoint.Call) (any, error) {
	id, err := b.downloads.Submit(ctx, call.Params(), nil)
	if err != nil {
		return nil, message.Failuref("download", "could not start download: %v", err)
	}
	return map[string]string{"id": id}, nil
}

// handlePrint preserves the silent-drop quirk: a job naming no printer when
// no default is configured yields a bare success with no job id and no
// native call.
func (b *Bridge) handlePrint(ctx context.Context, call *endpoint.Call) (any, error) {
	id, err := b.prints.Submit(ctx, call.Params(), nil)
	if err != nil {
		var failure *message.FailureError
		if stderrors.As(err, &failure) {
			return nil, failure
		}
		return nil, message.Failuref("print", "could not dispatch print job: %v", err)
	}
	if id == "" {
		return nil, nil
	}
	return map[string]string{"id": id}, nil
}

func (b *Bridge) handleOpenDownloadDir(context.Context, *endpoint.Call) (any, error) {
	dir := b.downloadDir()
	if dir == "" {
		return nil, message.Failuref("download", "no download directory configured")
	}
	if err := b.opener(dir); err != nil {
		return nil, err
	}
	return true, nil
}

func (b *Bridge) handlePOSPing(ctx context.Context, _ *endpoint.Call) (any, error) {
	return b.pos.Ping(ctx)
}

func (b *Bridge) handlePOSProcess(ctx context.Context, call *endpoint.Call) (any, error) {
	return b.pos.Process(ctx, call.Params())
}
