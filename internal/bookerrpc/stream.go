package bookerrpc

import (
	"errors"
	"sync"
)

// ErrEndOfStream is the explicit termination signal for a coroutine stream,
// carried on the wire as a WireError with Code == CodeEndOfStream.
var ErrEndOfStream = errors.New("bookerrpc: end of stream")

// Tagged carries one value across the wire tagged with its variant name, the
// wire shape for the "sends" a coroutine stream can consume.
type Tagged struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// StreamState is one coroutine's server-side progress: an explicit
// continuation the dispatcher resumes on each subsequent request carrying
// the same coroutine id.
type StreamState struct {
	ID     string
	Done   bool
	Cursor any // opaque, handler-owned continuation value
}

// StreamRegistry maps coroutine_id to its StreamState for methods whose
// result is a sequence rather than a single value. None of the concrete
// GatewayBookerOrder/BookerGatewayOrder methods currently need more than one
// yield; the dispatcher holds one registry and exposes it through
// Dispatcher.Streams for handlers that need it.
type StreamRegistry struct {
	mu      sync.Mutex
	streams map[string]*StreamState
}

// NewStreamRegistry returns an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{streams: make(map[string]*StreamState)}
}

// Get returns the stream for coroutineID, creating it on first use.
func (r *StreamRegistry) Get(coroutineID string) *StreamState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[coroutineID]
	if !ok {
		s = &StreamState{ID: coroutineID}
		r.streams[coroutineID] = s
	}
	return s
}

// Close discards coroutineID's state. Nothing calls it automatically: the
// handler that owns the stream closes it once the stream is done.
func (r *StreamRegistry) Close(coroutineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, coroutineID)
}

// Len reports the number of in-flight coroutine streams, for tests and
// health diagnostics.
func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
