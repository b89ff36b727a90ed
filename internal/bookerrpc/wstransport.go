package bookerrpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fincubator/bitshares-gateway/pkg/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 1 << 20
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSTransport is one full-duplex booker RPC stream over a websocket
// connection, with a read pump and a write pump running independently
// so a slow writer never blocks keepalive reads.
type WSTransport struct {
	conn     *websocket.Conn
	send     chan []byte
	receiver func([]byte)
	log      *logging.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSTransport(conn *websocket.Conn, log *logging.Logger) *WSTransport {
	t := &WSTransport{
		conn:   conn,
		send:   make(chan []byte, 256),
		log:    log.Component("bookerrpc.ws"),
		closed: make(chan struct{}),
	}
	go t.writePump()
	go t.readPump()
	return t
}

// DialWS connects to a booker RPC websocket endpoint as a client.
func DialWS(ctx context.Context, url string, log *logging.Logger) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newWSTransport(conn, log), nil
}

// WSServer accepts booker RPC websocket connections and hands each one to
// onAccept.
type WSServer struct {
	log      *logging.Logger
	onAccept func(*WSTransport)
}

// NewWSServer builds a WSServer that calls onAccept for every accepted
// connection, once per connection, before any frame is processed.
func NewWSServer(log *logging.Logger, onAccept func(*WSTransport)) *WSServer {
	return &WSServer{log: log.Component("bookerrpc.wsserver"), onAccept: onAccept}
}

// ServeHTTP upgrades the request and starts serving it.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade failed", "err", err)
		return
	}
	t := newWSTransport(conn, s.log)
	s.onAccept(t)
}

func (t *WSTransport) SetReceiver(fn func([]byte)) { t.receiver = fn }

func (t *WSTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case t.send <- frame:
		return nil
	case <-t.closed:
		return websocket.ErrCloseSent
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}

func (t *WSTransport) readPump() {
	defer t.Close()

	t.conn.SetReadLimit(wsReadLimit)
	t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				t.log.Debug("read error", "err", err)
			}
			return
		}
		if t.receiver != nil {
			t.receiver(message)
		}
	}
}

func (t *WSTransport) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				t.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.closed:
			return
		}
	}
}
