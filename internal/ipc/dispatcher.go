package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"authgate/pkg/logging"
	"authgate/pkg/oauth"
)

// Request is one call on the channel.
type Request struct {
	ID      string          `json:"id"`
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the failure half of a response.
type ErrorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Response answers one request, matched by ID.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorPayload   `json:"error,omitempty"`
}

// Handler executes one route. The returned value is marshalled as the
// result; a nil value produces an empty result.
type Handler func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// Dispatcher maps route names to handlers and enforces the per-call timeout.
type Dispatcher struct {
	mu      sync.RWMutex
	routes  map[string]Handler
	timeout time.Duration
}

// NewDispatcher creates a dispatcher with the given per-call timeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		routes:  make(map[string]Handler),
		timeout: timeout,
	}
}

// Register installs a handler for a route, replacing any previous one.
func (d *Dispatcher) Register(route string, h Handler) {
	d.mu.Lock()
	d.routes[route] = h
	d.mu.Unlock()
}

// Dispatch runs the handler for one request under the call timeout and
// shapes the outcome into a Response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	d.mu.RLock()
	handler, ok := d.routes[req.Route]
	d.mu.RUnlock()

	if !ok {
		return &Response{ID: req.ID, Error: &ErrorPayload{
			Error:            "unknown_route",
			ErrorDescription: "no handler registered for route " + req.Route,
		}}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := handler(callCtx, req.Payload)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return &Response{ID: req.ID, Error: errorPayloadFrom(o.err)}
		}
		return marshalResult(req, o.result)
	case <-callCtx.Done():
		logging.Warn("IPC", "Call on route %s exceeded the %s channel timeout", req.Route, d.timeout)
		return &Response{ID: req.ID, Error: &ErrorPayload{Error: "timeout"}}
	}
}

func marshalResult(req *Request, result interface{}) *Response {
	if result == nil {
		return &Response{ID: req.ID}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		logging.Error("IPC", err, "Failed to marshal result for route %s", req.Route)
		return &Response{ID: req.ID, Error: &ErrorPayload{Error: "internal_error"}}
	}
	return &Response{ID: req.ID, Result: raw}
}

// errorPayloadFrom shapes an application error into the wire form. Typed
// errors keep their OAuth code and description; anything else degrades to a
// generic internal_error without leaking internals.
func errorPayloadFrom(err error) *ErrorPayload {
	var oe *oauth.Error
	if errors.As(err, &oe) {
		code := oe.Code
		if code == "" {
			code = oe.Kind.String()
		}
		return &ErrorPayload{Error: code, ErrorDescription: oe.Description}
	}
	return &ErrorPayload{Error: "internal_error", ErrorDescription: "the operation failed"}
}
