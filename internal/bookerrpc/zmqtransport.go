package bookerrpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

// ZMQReqTransport issues requests over a ZeroMQ REQ socket. REQ/REP is strictly lockstep: each Send must be
// answered by exactly one reply before the next Send, enforced here with a
// mutex so concurrent Client.Call goroutines serialize correctly.
type ZMQReqTransport struct {
	sock     zmq4.Socket
	log      *logging.Logger
	mu       sync.Mutex
	receiver func([]byte)
}

// DialZMQReq connects to a booker REP endpoint as a REQ client.
func DialZMQReq(ctx context.Context, addr string, log *logging.Logger) (*ZMQReqTransport, error) {
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(addr); err != nil {
		return nil, fmt.Errorf("bookerrpc: zmq req dial %s: %w", addr, err)
	}
	return &ZMQReqTransport{sock: sock, log: log.Component("bookerrpc.zmqreq")}, nil
}

func (t *ZMQReqTransport) SetReceiver(fn func([]byte)) { t.receiver = fn }

// Send transmits frame and blocks for the single reply REQ/REP guarantees,
// then hands it to the installed receiver before returning.
func (t *ZMQReqTransport) Send(_ context.Context, frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sock.Send(zmq4.NewMsg(frame)); err != nil {
		return fmt.Errorf("bookerrpc: zmq send: %w", err)
	}
	reply, err := t.sock.Recv()
	if err != nil {
		return fmt.Errorf("bookerrpc: zmq recv: %w", err)
	}
	if t.receiver != nil {
		t.receiver(reply.Bytes())
	}
	return nil
}

func (t *ZMQReqTransport) Close() error { return t.sock.Close() }

// ZMQRepTransport answers requests over a ZeroMQ REP socket for one
// Dispatcher. Send must be called synchronously from within the receiver
// callback Serve invokes — REP enforces exactly one reply per request,
// which Dispatcher.onFrame already satisfies (handler runs, then a single
// Send completes the turn).
type ZMQRepTransport struct {
	sock     zmq4.Socket
	log      *logging.Logger
	receiver func([]byte)
}

// BindZMQRep binds addr as a REP endpoint serving booker-initiated calls.
func BindZMQRep(addr string, log *logging.Logger) (*ZMQRepTransport, error) {
	sock := zmq4.NewRep(context.Background())
	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("bookerrpc: zmq rep listen %s: %w", addr, err)
	}
	return &ZMQRepTransport{sock: sock, log: log.Component("bookerrpc.zmqrep")}, nil
}

func (t *ZMQRepTransport) SetReceiver(fn func([]byte)) { t.receiver = fn }

// Serve runs the request/reply loop until ctx is cancelled or the socket
// errors out (e.g. on Close). It is the rpc_server.poll task for the ZMQ
// transport.
func (t *ZMQRepTransport) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := t.sock.Recv()
		if err != nil {
			return fmt.Errorf("bookerrpc: zmq recv: %w", err)
		}
		if t.receiver != nil {
			t.receiver(msg.Bytes())
		}
	}
}

// Send replies to the request currently being served.
func (t *ZMQRepTransport) Send(_ context.Context, frame []byte) error {
	if err := t.sock.Send(zmq4.NewMsg(frame)); err != nil {
		return fmt.Errorf("bookerrpc: zmq send: %w", err)
	}
	return nil
}

func (t *ZMQRepTransport) Close() error { return t.sock.Close() }
