package endpoint

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runtimeerrors "github.com/supportcompanion/companion/internal/runtime/errors"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

func echoHandler(_ context.Context, call *Call) (any, error) {
	return call.Params(), nil
}

func TestRegister_Validation(t *testing.T) {
	ep := New(nil)

	assert.ErrorIs(t, ep.Register("", echoHandler), runtimeerrors.ErrRouteNameRequired)
	assert.ErrorIs(t, ep.Register("background.echo", nil), runtimeerrors.ErrInvalidHandler)
	assert.NoError(t, ep.Register("background.echo", echoHandler))
}

func TestRegister_ReplacesExisting(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("background.ping", func(context.Context, *Call) (any, error) {
		return "first", nil
	}))
	require.NoError(t, ep.Register("background.ping", func(context.Context, *Call) (any, error) {
		return "second", nil
	}))

	resp := ep.Route(context.Background(), message.NewRequest("background.ping", nil), nil)
	assert.Equal(t, "second", resp.Content)
}

func TestRoute_WrapsPlainResultAsSuccess(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("background.ping", func(context.Context, *Call) (any, error) {
		return "pong", nil
	}))

	resp := ep.Route(context.Background(), message.NewRequest("background.ping", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeSuccess, resp.Code)
	assert.Equal(t, "pong", resp.Content)
}

func TestRoute_PassesResponseThroughUnchanged(t *testing.T) {
	ep := New(nil)
	canned := message.Failure("deactivated", "print")
	require.NoError(t, ep.Register("companion.document.print", func(context.Context, *Call) (any, error) {
		return canned, nil
	}))

	resp := ep.Route(context.Background(), message.NewRequest("companion.document.print", nil), nil)
	assert.Same(t, canned, resp)
}

func TestRoute_UnknownRoute(t *testing.T) {
	ep := New(nil)

	resp := ep.Route(context.Background(), message.NewRequest("companion.missing", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeUnknown, resp.Code)
	assert.Contains(t, resp.Message, "companion.missing")
}

func TestRoute_NilRequest(t *testing.T) {
	ep := New(nil)

	resp := ep.Route(context.Background(), nil, nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeUnknown, resp.Code)
}

func TestRoute_FailureErrorBecomes403(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("companion.pos.process", func(context.Context, *Call) (any, error) {
		return nil, message.Failuref("pos", "POS is deactivated in options")
	}))

	resp := ep.Route(context.Background(), message.NewRequest("companion.pos.process", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeFailure, resp.Code)
	assert.Equal(t, "POS is deactivated in options", resp.Message)
	assert.Equal(t, "pos", resp.Type)
}

func TestRoute_PlainErrorBecomes500(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("background.echo", func(context.Context, *Call) (any, error) {
		return nil, errors.New("disk on fire")
	}))

	resp := ep.Route(context.Background(), message.NewRequest("background.echo", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeScriptError, resp.Code)
	assert.Equal(t, "disk on fire", resp.Message)
}

func TestRoute_PanicBecomes500(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("background.echo", func(context.Context, *Call) (any, error) {
		panic("corrupt state")
	}))

	resp := ep.Route(context.Background(), message.NewRequest("background.echo", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeScriptError, resp.Code)
	assert.Equal(t, "corrupt state", resp.Message)
}

func TestRoute_SilentRunsHandlerButReturnsNil(t *testing.T) {
	ep := New(nil)
	var ran atomic.Bool
	require.NoError(t, ep.Register("background.ping", func(context.Context, *Call) (any, error) {
		ran.Store(true)
		return "pong", nil
	}))

	req := message.NewRequest("background.ping", nil)
	req.Silent = true
	resp := ep.Route(context.Background(), req, nil)

	assert.Nil(t, resp)
	assert.True(t, ran.Load())
}

func TestRoute_SilentUnknownReturnsNilNot404(t *testing.T) {
	ep := New(nil)
	req := message.NewRequest("companion.missing", nil)
	req.Silent = true

	assert.Nil(t, ep.Route(context.Background(), req, nil))
}

func TestRoute_AsyncReturnsImmediately(t *testing.T) {
	ep := New(nil)
	done := make(chan struct{})
	require.NoError(t, ep.Register("background.ping", func(context.Context, *Call) (any, error) {
		close(done)
		return "pong", nil
	}))

	req := message.NewRequest("background.ping", nil)
	req.Async = true
	resp := ep.Route(context.Background(), req, nil)

	assert.Nil(t, resp)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestRoute_DelayDefersExecution(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("background.ping", echoHandler))

	req := message.NewRequest("background.ping", nil)
	req.Delay = 30
	start := time.Now()
	resp := ep.Route(context.Background(), req, nil)

	require.NotNil(t, resp)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRoute_DelayCancelledByContext(t *testing.T) {
	ep := New(nil)
	require.NoError(t, ep.Register("background.ping", echoHandler))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := message.NewRequest("background.ping", nil)
	req.Delay = 5000

	resp := ep.Route(ctx, req, nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeScriptError, resp.Code)
}

func TestResolve_ExactHandlerBeatsPipes(t *testing.T) {
	ep := New(nil)
	other := New(nil)
	require.NoError(t, other.Register("companion.ping", func(context.Context, *Call) (any, error) {
		return "from pipe", nil
	}))
	ep.Join(other)
	ep.AddPipe(Exact("companion.ping"), Match("companion", func(name string) bool {
		return strings.HasPrefix(name, "companion.")
	}))
	require.NoError(t, ep.Register("companion.ping", func(context.Context, *Call) (any, error) {
		return "local", nil
	}))

	resp := ep.Route(context.Background(), message.NewRequest("companion.ping", nil), nil)
	assert.Equal(t, "local", resp.Content)
}

func TestResolve_ExactPipeBeatsPredicatePipe(t *testing.T) {
	ep := New(nil)
	other := New(nil)
	require.NoError(t, other.Register("companion.printers.list", func(context.Context, *Call) (any, error) {
		return []string{"HP"}, nil
	}))
	ep.Join(other)
	// Both pipes match; the exact one must win regardless of add order.
	ep.AddPipe(Match("prefix", func(name string) bool {
		return strings.HasPrefix(name, "companion.")
	}))
	ep.AddPipe(Exact("companion.printers.list"))

	resp := ep.Route(context.Background(), message.NewRequest("companion.printers.list", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeSuccess, resp.Code)
}

func TestPipe_ForwardsToJoinedEndpoint(t *testing.T) {
	ep := New(nil)
	other := New(nil)
	var seen *message.Request
	require.NoError(t, other.Register("companion.serialPorts.list", func(_ context.Context, call *Call) (any, error) {
		seen = call.Request
		return []string{"COM3"}, nil
	}))
	ep.Join(other)
	ep.AddPipe(Exact("companion.serialPorts.list"))

	req := message.NewRequest("companion.serialPorts.list", []any{"usb"})
	resp := ep.Route(context.Background(), req, nil)

	require.NotNil(t, resp)
	assert.Equal(t, message.CodeSuccess, resp.Code)
	require.NotNil(t, seen)
	assert.Equal(t, []any{"usb"}, seen.Params)
}

func TestPipe_NoForwarderYieldsNothing(t *testing.T) {
	ep := New(nil)
	ep.AddPipe(Exact("companion.orphan"))

	resp := ep.Route(context.Background(), message.NewRequest("companion.orphan", nil), nil)
	assert.Nil(t, resp)
}

func TestPipe_PosterOnlyForwarderYieldsNothing(t *testing.T) {
	ep := New(nil)
	var posted atomic.Int32
	ep.SetForwarder(posterFunc(func(context.Context, *message.Request) error {
		posted.Add(1)
		return nil
	}))
	ep.AddPipe(Exact("companion.oneway"))

	resp := ep.Route(context.Background(), message.NewRequest("companion.oneway", nil), nil)
	assert.Nil(t, resp)
	assert.EqualValues(t, 1, posted.Load())
}

type posterFunc func(ctx context.Context, req *message.Request) error

func (f posterFunc) Post(ctx context.Context, req *message.Request) error { return f(ctx, req) }

func TestRemovePipe(t *testing.T) {
	ep := New(nil)
	other := New(nil)
	ep.Join(other)
	ep.AddPipe(Exact("companion.a"), Match("companion.b", func(name string) bool {
		return name == "companion.b"
	}))

	ep.RemovePipe("companion.a", "companion.b")

	assert.Equal(t, message.CodeUnknown, ep.Route(context.Background(), message.NewRequest("companion.a", nil), nil).Code)
	assert.Equal(t, message.CodeUnknown, ep.Route(context.Background(), message.NewRequest("companion.b", nil), nil).Code)
}

func TestRemovePipe_AbsentNameIsNoop(t *testing.T) {
	ep := New(nil)
	ep.AddPipe(Exact("companion.keep"))
	ep.RemovePipe("companion.gone")

	ep.SetForwarder(New(nil))
	// The surviving pipe still resolves; its target has no handler so the
	// joined endpoint answers 404.
	resp := ep.Route(context.Background(), message.NewRequest("companion.keep", nil), nil)
	require.NotNil(t, resp)
	assert.Equal(t, message.CodeUnknown, resp.Code)
}

func TestJoin_IsSymmetric(t *testing.T) {
	a := New(nil)
	b := New(nil)
	a.Join(b)

	assert.Same(t, b, a.Forwarder())
	assert.Same(t, a, b.Forwarder())
}

func TestJoin_NilIsNoop(t *testing.T) {
	a := New(nil)
	a.Join(nil)
	assert.Nil(t, a.Forwarder())
}

func TestUse_MiddlewareOrderAndPipeCoverage(t *testing.T) {
	ep := New(nil)
	var order []string
	mw := func(tag string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, call *Call) (any, error) {
				order = append(order, tag)
				return next(ctx, call)
			}
		}
	}
	ep.Use(mw("outer"), mw("inner"))
	require.NoError(t, ep.Register("background.ping", echoHandler))

	ep.Route(context.Background(), message.NewRequest("background.ping", nil), nil)
	assert.Equal(t, []string{"outer", "inner"}, order)

	// The chain also wraps pipe-synthesized handlers.
	order = nil
	other := New(nil)
	require.NoError(t, other.Register("companion.ping", echoHandler))
	ep.Join(other)
	ep.AddPipe(Exact("companion.ping"))
	ep.Route(context.Background(), message.NewRequest("companion.ping", nil), nil)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRoute_ChecksRequestBeforeDispatch(t *testing.T) {
	ep := New(nil)
	var seenID string
	require.NoError(t, ep.Register("background.ping", func(_ context.Context, call *Call) (any, error) {
		seenID = call.Request.ID
		return nil, nil
	}))

	req := &message.Request{Name: "background.ping", Delay: -10}
	ep.Route(context.Background(), req, nil)

	assert.Equal(t, message.DefaultID, seenID)
	assert.Zero(t, req.Delay)
}

func TestEndpoint_RequestAndPostActAsForwarder(t *testing.T) {
	ep := New(nil)
	var calls atomic.Int32
	require.NoError(t, ep.Register("background.ping", func(context.Context, *Call) (any, error) {
		calls.Add(1)
		return "pong", nil
	}))

	resp, err := ep.Request(context.Background(), message.NewRequest("background.ping", nil))
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Content)

	require.NoError(t, ep.Post(context.Background(), message.NewRequest("background.ping", nil)))
	assert.EqualValues(t, 2, calls.Load())
}
