package runtime

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/supportcompanion/companion/internal/runtime/endpoint"
	"github.com/supportcompanion/companion/internal/runtime/ids"
	"github.com/supportcompanion/companion/internal/runtime/logging"
	"github.com/supportcompanion/companion/internal/runtime/message"
)

// MiddlewareBuilder constructs a router middleware using the bridge instance.
type MiddlewareBuilder func(*Bridge) (endpoint.Middleware, error)

// Registration captures how a middleware should be installed on the bridge
// endpoint. Either Middleware or Builder is set; a Builder returning a nil
// middleware skips installation.
type Registration struct {
	Name       string
	Middleware endpoint.Middleware
	Builder    MiddlewareBuilder
}

// DefaultMiddlewares returns the standard chain installed by NewBridge.
func DefaultMiddlewares() []Registration {
	return []Registration{
		CorrelationIDMiddleware(),
		LogRequestsMiddleware(nil),
		TracerMiddleware(),
		MetricsMiddleware(),
	}
}

// CorrelationIDMiddleware assigns a fresh ULID to every request that still
// carries the default correlation ID.
func CorrelationIDMiddleware() Registration {
	return Registration{
		Name: "correlation_id",
		Middleware: func(next endpoint.Handler) endpoint.Handler {
			return func(ctx context.Context, call *endpoint.Call) (any, error) {
				if call.Request.ID == message.DefaultID {
					call.Request.ID = ids.CreateULID()
				}
				return next(ctx, call)
			}
		},
	}
}

// LogRequestsMiddleware logs every routed request with its outcome. A nil
// logger falls back to the bridge logger.
func LogRequestsMiddleware(logger logging.ServiceLogger) Registration {
	return Registration{
		Name: "log_requests",
		Builder: func(b *Bridge) (endpoint.Middleware, error) {
			l := logger
			if l == nil {
				l = b.Logger
			}
			return logRequestsMiddleware(l), nil
		},
	}
}

func logRequestsMiddleware(logger logging.ServiceLogger) endpoint.Middleware {
	return func(next endpoint.Handler) endpoint.Handler {
		return func(ctx context.Context, call *endpoint.Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)
			fields := logging.LogFields{
				"route":    call.Request.Name,
				"id":       call.Request.ID,
				"duration": time.Since(start).String(),
			}
			if err != nil {
				logger.Error("route handled with error", err, fields)
				return result, err
			}
			logger.Debug("route handled", fields)
			return result, err
		}
	}
}

// TracerMiddleware wraps handler execution in an OpenTelemetry span.
func TracerMiddleware() Registration {
	return Registration{
		Name: "tracer",
		Middleware: func(next endpoint.Handler) endpoint.Handler {
			tracer := otel.Tracer("companion/endpoint")
			return func(ctx context.Context, call *endpoint.Call) (any, error) {
				ctx, span := tracer.Start(ctx, "companion.route")
				defer span.End()
				span.SetAttributes(
					attribute.String("companion.route", call.Request.Name),
					attribute.String("companion.request_id", call.Request.ID),
				)
				result, err := next(ctx, call)
				if err != nil {
					span.RecordError(err)
				}
				return result, err
			}
		},
	}
}

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Name:      "requests_total",
		Help:      "Routed requests by route name and response code.",
	}, []string{"route", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "companion",
		Name:      "request_duration_seconds",
		Help:      "Handler execution time by route name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// MetricsMiddleware records Prometheus metrics per routed request. It is a
// no-op unless the bridge was built with metrics enabled.
func MetricsMiddleware() Registration {
	return Registration{
		Name: "metrics",
		Builder: func(b *Bridge) (endpoint.Middleware, error) {
			if !b.metricsEnabled {
				return nil, nil
			}
			if err := registerCollector(requestsTotal); err != nil {
				return nil, err
			}
			if err := registerCollector(requestDuration); err != nil {
				return nil, err
			}
			return metricsMiddleware(), nil
		},
	}
}

func registerCollector(c prometheus.Collector) error {
	err := prometheus.DefaultRegisterer.Register(c)
	if err == nil {
		return nil
	}
	if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return nil
	}
	return err
}

func metricsMiddleware() endpoint.Middleware {
	return func(next endpoint.Handler) endpoint.Handler {
		return func(ctx context.Context, call *endpoint.Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)
			requestDuration.WithLabelValues(call.Request.Name).Observe(time.Since(start).Seconds())
			requestsTotal.WithLabelValues(call.Request.Name, codeLabel(result, err)).Inc()
			return result, err
		}
	}
}

func codeLabel(result any, err error) string {
	if err != nil {
		var fe *message.FailureError
		if stderrors.As(err, &fe) {
			return "403"
		}
		return "500"
	}
	if resp, ok := result.(*message.Response); ok && resp != nil {
		switch resp.Code {
		case message.CodeSuccess:
			return "200"
		case message.CodeFailure:
			return "403"
		case message.CodeUnknown:
			return "404"
		case message.CodeScriptError:
			return "500"
		}
	}
	return "200"
}
