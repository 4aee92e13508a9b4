package logging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu    sync.Mutex
	debug []string
	info  []string
	errs  []string
	trace []string
}

func (r *recordingLogger) With(LogFields) ServiceLogger { return r }

func (r *recordingLogger) Debug(msg string, _ LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = append(r.debug, msg)
}

func (r *recordingLogger) Info(msg string, _ LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = append(r.info, msg)
}

func (r *recordingLogger) Error(msg string, _ error, _ LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recordingLogger) Trace(msg string, _ LogFields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, msg)
}

func TestConsoleGate_DisabledDropsDebugAndTrace(t *testing.T) {
	rec := &recordingLogger{}
	gate := NewConsoleGate(rec, false)

	gate.Debug("d", nil)
	gate.Trace("t", nil)

	assert.Empty(t, rec.debug)
	assert.Empty(t, rec.trace)
}

func TestConsoleGate_InfoAndErrorAlwaysPass(t *testing.T) {
	rec := &recordingLogger{}
	gate := NewConsoleGate(rec, false)

	gate.Info("i", nil)
	gate.Error("e", nil, nil)

	assert.Equal(t, []string{"i"}, rec.info)
	assert.Equal(t, []string{"e"}, rec.errs)
}

func TestConsoleGate_SetEnabledFlipsAtRuntime(t *testing.T) {
	rec := &recordingLogger{}
	gate := NewConsoleGate(rec, false)

	gate.Debug("before", nil)
	gate.SetEnabled(true)
	gate.Debug("after", nil)

	assert.True(t, gate.Enabled())
	assert.Equal(t, []string{"after"}, rec.debug)
}

func TestConsoleGate_DerivedLoggersShareTheGate(t *testing.T) {
	rec := &recordingLogger{}
	gate := NewConsoleGate(rec, false)
	derived := gate.With(LogFields{"component": "download"})

	derived.Debug("hidden", nil)
	gate.SetEnabled(true)
	derived.Debug("visible", nil)
	derived.Trace("traced", nil)

	assert.Equal(t, []string{"visible"}, rec.debug)
	assert.Equal(t, []string{"traced"}, rec.trace)
}
