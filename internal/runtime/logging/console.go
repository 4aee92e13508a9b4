package logging

import "sync/atomic"

// ConsoleGate filters debug and trace output behind the persisted console
// option. Info and error lines always pass. The gate can be flipped at
// runtime and the new state applies to every logger derived via With.
type ConsoleGate struct {
	base    ServiceLogger
	enabled *atomic.Bool
}

// NewConsoleGate wraps base with a gate in the given initial state.
func NewConsoleGate(base ServiceLogger, enabled bool) *ConsoleGate {
	if base == nil {
		base = Nop()
	}
	g := &ConsoleGate{base: base, enabled: new(atomic.Bool)}
	g.enabled.Store(enabled)
	return g
}

// SetEnabled flips the gate.
func (g *ConsoleGate) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

// Enabled reports the current gate state.
func (g *ConsoleGate) Enabled() bool {
	return g.enabled.Load()
}

func (g *ConsoleGate) With(fields LogFields) ServiceLogger {
	return &ConsoleGate{base: g.base.With(fields), enabled: g.enabled}
}

func (g *ConsoleGate) Debug(msg string, fields LogFields) {
	if g.enabled.Load() {
		g.base.Debug(msg, fields)
	}
}

func (g *ConsoleGate) Info(msg string, fields LogFields) {
	g.base.Info(msg, fields)
}

func (g *ConsoleGate) Error(msg string, err error, fields LogFields) {
	g.base.Error(msg, err, fields)
}

func (g *ConsoleGate) Trace(msg string, fields LogFields) {
	if g.enabled.Load() {
		g.base.Trace(msg, fields)
	}
}
