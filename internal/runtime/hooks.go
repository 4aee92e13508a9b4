package runtime

import (
	"context"
	"time"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

// RequestContext provides information about a routed request to hooks.
type RequestContext struct {
	// Route is the request name being handled.
	Route string
	// RequestID is the correlation identifier.
	RequestID string
	// Context is the context the handler runs under.
	Context context.Context
	// StartedAt is when routing began.
	StartedAt time.Time
	// Duration is how long the handler took (only set in OnRequestDone and
	// OnRequestError).
	Duration time.Duration
	// Code is the response code the handler produced (only set in
	// OnRequestDone).
	Code message.Code
}

// RequestHooks defines callbacks around handler execution. All hooks are
// optional; nil hooks are simply not called.
type RequestHooks struct {
	// OnRequestStart is called before the handler is invoked.
	OnRequestStart func(ctx RequestContext)

	// OnRequestDone is called when the handler produced a response,
	// whatever its code.
	OnRequestDone func(ctx RequestContext)

	// OnRequestError is called when the handler returned an error, before
	// the router converts it to a response.
	OnRequestError func(ctx RequestContext, err error)
}

// Merge combines two hook sets; hooks from other are called after h's.
func (h RequestHooks) Merge(other RequestHooks) RequestHooks {
	return RequestHooks{
		OnRequestStart: chainHooks(h.OnRequestStart, other.OnRequestStart),
		OnRequestDone:  chainHooks(h.OnRequestDone, other.OnRequestDone),
		OnRequestError: chainErrorHooks(h.OnRequestError, other.OnRequestError),
	}
}

func chainHooks(a, b func(RequestContext)) func(RequestContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(RequestContext, error)) func(RequestContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx RequestContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

// HooksMiddleware invokes the provided hooks around every handled request.
func HooksMiddleware(hooks RequestHooks) Registration {
	return Registration{
		Name: "request_hooks",
		Builder: func(b *Bridge) (endpoint.Middleware, error) {
			return hooksMiddleware(hooks), nil
		},
	}
}

func hooksMiddleware(hooks RequestHooks) endpoint.Middleware {
	return func(next endpoint.Handler) endpoint.Handler {
		return func(ctx context.Context, call *endpoint.Call) (any, error) {
			rc := RequestContext{
				Route:     call.Request.Name,
				RequestID: call.Request.ID,
				Context:   ctx,
				StartedAt: time.Now(),
			}
			if hooks.OnRequestStart != nil {
				hooks.OnRequestStart(rc)
			}

			result, err := next(ctx, call)
			rc.Duration = time.Since(rc.StartedAt)

			if err != nil {
				if hooks.OnRequestError != nil {
					hooks.OnRequestError(rc, err)
				}
				return result, err
			}
			if hooks.OnRequestDone != nil {
				if resp, ok := result.(*message.Response); ok && resp != nil {
					rc.Code = resp.Code
				} else {
					rc.Code = message.CodeSuccess
				}
				hooks.OnRequestDone(rc)
			}
			return result, err
		}
	}
}

// LoggingHooks returns hooks that log request lifecycle transitions.
func LoggingHooks(logger logging.ServiceLogger) RequestHooks {
	return RequestHooks{
		OnRequestStart: func(ctx RequestContext) {
			logger.Debug("request started", logging.LogFields{
				"route": ctx.Route,
				"id":    ctx.RequestID,
			})
		},
		OnRequestDone: func(ctx RequestContext) {
			logger.Debug("request done", logging.LogFields{
				"route":    ctx.Route,
				"id":       ctx.RequestID,
				"code":     int(ctx.Code),
				"duration": ctx.Duration.String(),
			})
		},
		OnRequestError: func(ctx RequestContext, err error) {
			logger.Error("request failed", err, logging.LogFields{
				"route":    ctx.Route,
				"id":       ctx.RequestID,
				"duration": ctx.Duration.String(),
			})
		},
	}
}
