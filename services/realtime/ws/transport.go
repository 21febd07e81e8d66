// Package wstransport carries the realtime event vocabulary over a
// WebSocket connection. It implements realtime.Transport; the channel
// layer never touches the socket directly.
package wstransport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/realtime"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

type Transport struct {
	url     string
	token   string
	log     core.Logger
	handler realtime.Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	// dialing is set while a connect goroutine is in flight, so a
	// Reconnect racing the initial dial cannot spawn a second socket.
	dialing bool
	closed  bool
	writeMu sync.Mutex
}

var _ realtime.Transport = (*Transport)(nil)

// NewDialer builds a realtime.Dialer bound to the configured realtime
// endpoint. Establishment runs in the background; the returned
// transport reports progress through the handler.
func NewDialer(conf *core.Config, log core.Logger) realtime.Dialer {
	endpoint := conf.Realtime.URL
	return func(token string, h realtime.Handler) (realtime.Transport, error) {
		t := &Transport{url: endpoint, token: token, log: log, handler: h, dialing: true}
		go t.connect()
		return t, nil
	}
}

func (t *Transport) connect() {
	header := http.Header{"Authorization": {"Bearer " + t.token}}
	conn, res, err := websocket.DefaultDialer.Dial(t.url, header)
	if res != nil && res.Body != nil {
		defer func() { _ = res.Body.Close() }()
	}
	if err != nil {
		t.mu.Lock()
		t.dialing = false
		t.mu.Unlock()
		t.handler.HandleError(errors.Wrap(err, "realtime dial"))
		return
	}

	t.mu.Lock()
	t.dialing = false
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.connected = true
	t.mu.Unlock()

	t.handler.HandleOpen()
	go t.pingLoop(conn)
	t.readPump(conn)
}

// readPump pumps event frames from the socket to the handler until the
// connection goes away, then reports the close.
func (t *Transport) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var reason string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			reason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				t.log.Warn("realtime read error", err)
			}
			break
		}
		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.log.Warn("dropping malformed realtime frame", err)
			continue
		}
		t.handler.HandleMessage(msg)
	}

	t.mu.Lock()
	wasConnected := t.connected
	t.connected = false
	if t.conn == conn {
		t.conn = nil
	}
	t.mu.Unlock()
	_ = conn.Close()

	if wasConnected {
		t.handler.HandleClose(reason)
	}
}

// pingLoop keeps the connection alive; the pong handler in readPump
// extends the read deadline.
func (t *Transport) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		stale := t.conn != conn
		t.mu.Unlock()
		if stale {
			return
		}

		t.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		t.writeMu.Unlock()
		if err != nil {
			_ = conn.Close()
			return
		}
	}
}

func (t *Transport) Emit(event string, data interface{}) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()
	if conn == nil || !connected {
		return errors.New("transport not connected")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "encoding %s payload", event)
	}
	frame := realtime.Message{Event: event, Data: payload}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		return errors.Wrapf(err, "writing %s frame", event)
	}
	return nil
}

func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Reconnect re-establishes the socket with the same endpoint and token.
// A no-op while still connected, while a dial is already in flight, or
// after Close.
func (t *Transport) Reconnect() {
	t.mu.Lock()
	busy := t.connected || t.dialing || t.closed
	if !busy {
		t.dialing = true
	}
	t.mu.Unlock()
	if busy {
		return
	}
	go t.connect()
}

func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return conn.Close()
}
