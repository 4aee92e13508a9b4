package services

import (
	"context"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/config"
	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

// Native host routes backing the POS surface.
const (
	RouteEpaymentPing               = "companion.epayment.ping"
	RouteEpaymentProcess            = "companion.epayment.process"
	RouteEpaymentSupportedDevices   = "companion.epayment.supportedDevices"
	RouteEpaymentSupportedProtocols = "companion.epayment.supportedProtocols"
)

// POSManager translates the background `companion.pos.*` surface into the
// native `companion.epayment.*` routes, merging the configured terminal
// parameters into every call.
type POSManager struct {
	native endpoint.Requester
	logger logging.ServiceLogger

	mu   sync.Mutex
	opts config.POSOptions
}

// NewPOSManager wires a manager over the native requester.
func NewPOSManager(native endpoint.Requester, opts *config.Options, logger logging.ServiceLogger) (*POSManager, error) {
	if native == nil {
		return nil, errors.ErrRequesterRequired
	}
	if logger == nil {
		logger = logging.Nop()
	}
	m := &POSManager{native: native, logger: logger}
	m.ApplyOptions(opts)
	return m, nil
}

// ApplyOptions re-applies the option snapshot wholesale.
func (m *POSManager) ApplyOptions(opts *config.Options) {
	if opts == nil {
		return
	}
	m.mu.Lock()
	m.opts = opts.POS
	m.mu.Unlock()
}

// Ping probes the configured terminal through the native host.
func (m *POSManager) Ping(ctx context.Context) (*message.Response, error) {
	terminal, err := m.terminal()
	if err != nil {
		return nil, err
	}
	return m.native.Request(ctx, message.NewRequest(RouteEpaymentPing, terminal))
}

// Process runs a payment. The caller's params are merged over the configured
// terminal parameters; caller keys win.
func (m *POSManager) Process(ctx context.Context, params any) (*message.Response, error) {
	terminal, err := m.terminal()
	if err != nil {
		return nil, err
	}
	merged := map[string]any{}
	for k, v := range terminal {
		merged[k] = v
	}
	if params != nil {
		var extra map[string]any
		if err := jsoncodec.Remarshal(&extra, params); err != nil {
			return nil, err
		}
		for k, v := range extra {
			merged[k] = v
		}
	}
	return m.native.Request(ctx, message.NewRequest(RouteEpaymentProcess, merged))
}

// SupportedDevices lists the device models the native host can drive.
func (m *POSManager) SupportedDevices(ctx context.Context) (*message.Response, error) {
	return m.native.Request(ctx, message.NewRequest(RouteEpaymentSupportedDevices, nil))
}

// SupportedProtocols lists the payment protocols the native host implements.
func (m *POSManager) SupportedProtocols(ctx context.Context) (*message.Response, error) {
	return m.native.Request(ctx, message.NewRequest(RouteEpaymentSupportedProtocols, nil))
}

func (m *POSManager) terminal() (map[string]any, error) {
	m.mu.Lock()
	opts := m.opts
	m.mu.Unlock()
	if !opts.Activate {
		return nil, message.Failuref("pos", "POS is deactivated in options")
	}
	return map[string]any{
		"device":   opts.Device,
		"port":     opts.Port,
		"protocol": opts.Protocol,
		"ethip":    opts.EthIP,
	}, nil
}
