package bookerrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// Transport is the minimum a wire carrier must provide: send one framed
// message, deliver each received frame to a handler. A process
// may be Client on one Transport and Server on another simultaneously.
type Transport interface {
	// Send writes one frame (a marshaled Request or Response).
	Send(ctx context.Context, frame []byte) error
	// SetReceiver installs the callback invoked for every inbound frame.
	SetReceiver(func(frame []byte))
	// Close releases the transport's resources.
	Close() error
}

// Handler serves one method call and returns its result (nil for "→ ∅"
// methods) or an error. Business errors should be *RemoteError or
// *RemoteUnknownError so Dispatcher can frame them as {name, args};
// ErrEndOfStream is reported as CodeEndOfStream and any other error as
// CodeInternalError.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Client issues requests over a Transport and resolves their responses,
// implementing the outer/wire half of the protocol for the caller side.
type Client struct {
	transport Transport
	log       *logging.Logger

	mu      sync.Mutex
	pending map[string]chan *Response
}

// NewClient wires a Client to transport; it takes over the transport's
// receiver.
func NewClient(transport Transport, log *logging.Logger) *Client {
	c := &Client{transport: transport, log: log.Component("bookerrpc.client"), pending: make(map[string]chan *Response)}
	transport.SetReceiver(c.onFrame)
	return c
}

func (c *Client) onFrame(frame []byte) {
	var resp Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		c.log.Warn("discarding unparseable frame", "err", err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debug("response for unknown or expired request", "id", resp.ID)
		return
	}
	ch <- &resp
}

// Call sends method with params (which must embed "_coroutine_id") and
// blocks for the matching response.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	id := uuid.New().String()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return fmt.Errorf("bookerrpc: marshal request: %w", err)
	}
	frame, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bookerrpc: marshal frame: %w", err)
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.transport.Send(ctx, frame); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("bookerrpc: send: %w", err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	case resp := <-ch:
		if err := resp.Validate(); err != nil {
			return err
		}
		if resp.Error != nil {
			return decodeWireError(resp.Error)
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

func decodeWireError(e *WireError) error {
	if e.Code == CodeEndOfStream {
		return ErrEndOfStream
	}
	if len(e.Data) > 0 {
		var payload struct {
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		}
		if err := json.Unmarshal(e.Data, &payload); err == nil && payload.Name != "" {
			return DecodeRemoteError(payload.Name, payload.Args)
		}
	}
	return fmt.Errorf("bookerrpc: %s (code %d)", e.Message, e.Code)
}

// Dispatcher serves incoming requests against registered services,
// implementing the inner/API half of the protocol for the callee side.
type Dispatcher struct {
	transport Transport
	log       *logging.Logger
	streams   *StreamRegistry

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher wires a Dispatcher to transport; it takes over the
// transport's receiver.
func NewDispatcher(transport Transport, log *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		transport: transport,
		log:       log.Component("bookerrpc.server"),
		streams:   NewStreamRegistry(),
		handlers:  make(map[string]Handler),
	}
	transport.SetReceiver(d.onFrame)
	return d
}

// Register binds serviceName.method to handler.
func (d *Dispatcher) Register(serviceName, method string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[serviceName+"."+method] = handler
}

func (d *Dispatcher) onFrame(frame []byte) {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		d.respond(NewError("", CodeParseError, "parse error", nil))
		return
	}
	if req.JSONRPC != ProtocolVersion {
		d.respond(NewError(req.ID, CodeInvalidRequest, "invalid request", nil))
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[req.Method]
	d.mu.RUnlock()
	if !ok {
		d.respond(NewError(req.ID, CodeMethodNotFound, "method not found", req.Method))
		return
	}

	result, err := handler(context.Background(), req.Params)
	if err != nil {
		d.respond(d.errorResponse(req.ID, err))
		return
	}
	resp, err := NewResult(req.ID, result)
	if err != nil {
		d.respond(NewError(req.ID, CodeInternalError, err.Error(), nil))
		return
	}
	d.respond(resp)
}

func (d *Dispatcher) errorResponse(id string, err error) *Response {
	switch e := err.(type) {
	case *RemoteError:
		return NewError(id, CodeServerErrorMax, e.Error(), map[string]any{"name": e.Name, "args": e.Args})
	case *RemoteUnknownError:
		return NewError(id, CodeServerErrorMax, e.Error(), map[string]any{"name": e.Name, "args": e.Args})
	default:
		if err == ErrEndOfStream {
			return NewError(id, CodeEndOfStream, err.Error(), nil)
		}
		return NewError(id, CodeInternalError, err.Error(), nil)
	}
}

func (d *Dispatcher) respond(resp *Response) {
	frame, err := json.Marshal(resp)
	if err != nil {
		d.log.Error("marshal response failed", "err", err)
		return
	}
	if err := d.transport.Send(context.Background(), frame); err != nil {
		d.log.Warn("send response failed", "err", err)
	}
}

// Streams exposes the dispatcher's coroutine registry for methods that need
// multi-value sequences.
func (d *Dispatcher) Streams() *StreamRegistry { return d.streams }
