package services

import (
	"context"
	"sync"

	"github.com/supportcompanion/companion/internal/runtime/config"
	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/events"
	"github.com/supportcompanion/companion/internal/runtime/ids"
	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

// TopicPrintResponse is the push route announcing terminal print states.
const TopicPrintResponse = "companion.document.print.response"

// RouteNativePrint is the native host route that performs the actual print.
const RouteNativePrint = "companion.document.print"

// PrintJob describes one print dispatch. Document is an opaque payload the
// native host understands (typically a base64 PDF plus options).
type PrintJob struct {
	PrinterName string `json:"printerName,omitempty"`
	Document    any    `json:"document,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Copies      int    `json:"copies,omitempty"`
}

// PrintResult is delivered to the submitter's callback when the native call
// settles.
type PrintResult struct {
	ID          string `json:"id"`
	Success     bool   `json:"success"`
	Reason      string `json:"reason,omitempty"`
	PrinterName string `json:"printerName,omitempty"`
}

// PrintManager dispatches print jobs to the native host and tracks them by a
// generated id while the call is in flight. The registry entry never holds
// the completion callback: it is detached before insertion so a stored job
// can be logged or serialized safely.
type PrintManager struct {
	native endpoint.Requester
	logger logging.ServiceLogger
	bus    *events.Bus

	mu          sync.Mutex
	jobs        map[string]PrintJob
	defaultName string
	activated   bool
}

// NewPrintManager wires a manager over the native requester.
func NewPrintManager(native endpoint.Requester, opts *config.Options, bus *events.Bus, logger logging.ServiceLogger) (*PrintManager, error) {
	if native == nil {
		return nil, errors.ErrRequesterRequired
	}
	if logger == nil {
		logger = logging.Nop()
	}
	m := &PrintManager{
		native: native,
		logger: logger,
		bus:    bus,
		jobs:   make(map[string]PrintJob),
	}
	m.ApplyOptions(opts)
	return m, nil
}

// ApplyOptions re-applies the option snapshot wholesale.
func (m *PrintManager) ApplyOptions(opts *config.Options) {
	if opts == nil {
		return
	}
	m.mu.Lock()
	m.defaultName = opts.Printer.Default
	m.activated = opts.Printer.Activate
	m.mu.Unlock()
}

// Submit dispatches a print job. Jobs are refused while printing is
// deactivated in the options, before any native traffic. A job naming no
// printer falls back to the configured default; with no default either, the
// job is dropped without an error or a callback invocation. That silent drop
// is long-standing behavior callers depend on; do not turn it into a failure
// response.
func (m *PrintManager) Submit(ctx context.Context, params any, done func(PrintResult)) (string, error) {
	var job PrintJob
	if err := jsoncodec.Remarshal(&job, params); err != nil {
		return "", err
	}

	m.mu.Lock()
	activated := m.activated
	if job.PrinterName == "" {
		job.PrinterName = m.defaultName
	}
	m.mu.Unlock()
	if !activated {
		return "", message.Failuref("print", "Printing is deactivated in options")
	}
	if job.PrinterName == "" {
		m.logger.Trace("print job dropped: no printer name and no default", nil)
		return "", nil
	}

	id := ids.CreateULID()
	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	m.logger.Debug("print submitted", logging.LogFields{
		"id":      id,
		"printer": job.PrinterName,
	})

	resp, err := m.native.Request(ctx, message.NewRequest(RouteNativePrint, job))

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()

	result := PrintResult{ID: id, PrinterName: job.PrinterName}
	switch {
	case err != nil:
		result.Reason = err.Error()
	case resp == nil:
		result.Reason = "no response from native host"
	case !resp.OK():
		result.Reason = resp.Message
	default:
		result.Success = true
	}
	m.finish(result, done)
	return id, nil
}

// Pending reports the number of jobs still tracked.
func (m *PrintManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *PrintManager) finish(result PrintResult, done func(PrintResult)) {
	if done != nil {
		done(result)
	}
	if m.bus != nil {
		if err := m.bus.Publish(TopicPrintResponse, result); err != nil {
			m.logger.Error("failed to publish print response", err, logging.LogFields{"id": result.ID})
		}
	}
	m.logger.Info("print finished", logging.LogFields{
		"id":      result.ID,
		"success": result.Success,
		"reason":  result.Reason,
	})
}
