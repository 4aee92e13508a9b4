// Package message defines the request and response shapes exchanged between
// the page client, the bridge endpoints, and the native host. The wire format
// is plain JSON: requests are `{name, params, id, delay, async, silent}` and
// responses are `{code, content|message, type?, name?, id?}`.
package message

import (
	"fmt"

	"github.com/supportcompanion/companion/internal/runtime/jsoncodec"
)

// DefaultID marks a request that has not been assigned a correlation ID yet.
const DefaultID = "-1"

// Request is a named, directed instruction. Requests are created fresh per
// call and never pooled or reused.
type Request struct {
	// Name identifies the route, for example "companion.document.print".
	Name string `json:"name"`
	// Params is the opaque payload: a scalar, an array, or a keyed map.
	Params any `json:"params,omitempty"`
	// ID correlates a request with its response. Defaults to DefaultID.
	ID string `json:"id"`
	// Delay defers handler execution by the given number of milliseconds.
	Delay int `json:"delay"`
	// Async requests fire-and-forget delivery: the sender does not await a reply.
	Async bool `json:"async,omitempty"`
	// Silent suppresses the router's return value even when the handler
	// produced one. The handler still runs.
	Silent bool `json:"silent,omitempty"`
}

// NewRequest builds a request for the given route with defaulted bookkeeping
// fields.
func NewRequest(name string, params any) *Request {
	return &Request{
		Name:   name,
		Params: params,
		ID:     DefaultID,
	}
}

// Check normalizes malformed fields to their defaults in place and returns
// the request. It never fails: an empty ID becomes DefaultID and a negative
// delay becomes zero.
func (r *Request) Check() *Request {
	if r.ID == "" {
		r.ID = DefaultID
	}
	if r.Delay < 0 {
		r.Delay = 0
	}
	return r
}

// Code is the closed status vocabulary carried by every response.
type Code int

const (
	// CodeSuccess carries an arbitrary result payload.
	CodeSuccess Code = 200
	// CodeFailure carries a human-readable message for an expected,
	// functional failure.
	CodeFailure Code = 403
	// CodeUnknown means no handler or pipe matched the requested route.
	CodeUnknown Code = 404
	// CodeScriptError carries an unexpected error unwrapped from the handler.
	CodeScriptError Code = 500
)

// Response is a tagged result. Exactly one code from the closed set is set
// and the code determines which payload fields are populated. Responses are
// immutable after construction: callers must not mutate a response they did
// not build.
type Response struct {
	Code Code `json:"code"`
	// Content holds the Success result payload, or the raw error value for a
	// ScriptError built from a non-error input.
	Content any `json:"content,omitempty"`
	// Message holds the Failure, Unknown, or ScriptError text.
	Message string `json:"message,omitempty"`
	// Type optionally categorizes a Failure or ScriptError.
	Type string `json:"type,omitempty"`
	// Name optionally echoes the originating route on a Success.
	Name string `json:"name,omitempty"`
	// Ref optionally carries the correlation ID of the request being answered.
	Ref string `json:"id,omitempty"`
}

// Success builds a 200 response wrapping the given result payload.
func Success(content any) *Response {
	return &Response{Code: CodeSuccess, Content: content}
}

// SuccessFor builds a 200 response tagged with the route and correlation ID
// it answers.
func SuccessFor(req *Request, content any) *Response {
	return &Response{Code: CodeSuccess, Content: content, Name: req.Name, Ref: req.ID}
}

// Failure builds a 403 response for an expected, functional failure.
func Failure(msg, failureType string) *Response {
	return &Response{Code: CodeFailure, Message: msg, Type: failureType}
}

// Unknown builds a 404 response whose message names the missing route.
func Unknown(name string) *Response {
	return &Response{Code: CodeUnknown, Message: fmt.Sprintf("unknown route %q", name)}
}

// ScriptError builds a 500 response from an unexpected handler error. The
// message is unwrapped from error-shaped inputs; anything else is carried
// verbatim as content.
func ScriptError(v any) *Response {
	switch err := v.(type) {
	case nil:
		return &Response{Code: CodeScriptError}
	case *FailureError:
		return &Response{Code: CodeScriptError, Message: err.Message, Type: err.Type}
	case error:
		return &Response{Code: CodeScriptError, Message: err.Error()}
	case string:
		return &Response{Code: CodeScriptError, Message: err}
	default:
		return &Response{Code: CodeScriptError, Content: v}
	}
}

// OK reports whether the response carries a success code.
func (r *Response) OK() bool {
	return r != nil && r.Code == CodeSuccess
}

// Err converts a non-200 response into an error value, or nil for a success.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &RouteError{Code: r.Code, Message: r.Message, Type: r.Type}
}

// RouteError is the error shape transports reject with when a downstream
// response carries a non-200 code.
type RouteError struct {
	Code    Code
	Message string
	Type    string
}

func (e *RouteError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("route failed with code %d (%s): %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("route failed with code %d: %s", e.Code, e.Message)
}

// FailureError signals an expected failure from a handler. The router
// converts it to a 403 response instead of a 500.
type FailureError struct {
	Message string
	Type    string
}

func (e *FailureError) Error() string { return e.Message }

// Failuref builds a FailureError with a formatted message.
func Failuref(failureType, format string, args ...any) *FailureError {
	return &FailureError{Message: fmt.Sprintf(format, args...), Type: failureType}
}

// Bind decodes the request params into the supplied pointer, going through
// the JSON codec so maps, arrays, and scalars all coerce uniformly.
func (r *Request) Bind(v any) error {
	raw, err := jsoncodec.Marshal(r.Params)
	if err != nil {
		return err
	}
	return jsoncodec.Unmarshal(raw, v)
}

// ParamAt returns the i-th element of an array-shaped params payload, or nil
// when params is not an array or the index is out of range. For non-array
// params, index 0 returns the payload itself.
func (r *Request) ParamAt(i int) any {
	switch params := r.Params.(type) {
	case []any:
		if i < 0 || i >= len(params) {
			return nil
		}
		return params[i]
	default:
		if i == 0 {
			return r.Params
		}
		return nil
	}
}
