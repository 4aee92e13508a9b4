// Package ws provides a websocket implementation of the wire connection so
// the port and call adapters can cross process boundaries, for example
// between an extension page and a local bridge daemon.
package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/supportcompanion/companion/internal/runtime/wire"
	"github.com/supportcompanion/companion/transport"
)

func init() {
	transport.Register(transport.WebSocketCapabilities)
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadFrame() ([]byte, error) {
	for {
		msgType, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		// Control frames are handled by gorilla; skip anything that is not a
		// data message.
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteFrame(data []byte) error {
	return w.c.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

// Wrap adapts an established websocket connection to the wire interface.
func Wrap(c *websocket.Conn) wire.Conn {
	return &wsConn{c: c}
}

// Dial connects to a websocket URL.
func Dial(ctx context.Context, url string) (wire.Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return Wrap(c), nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Upgrade accepts an incoming websocket handshake.
func Upgrade(w http.ResponseWriter, r *http.Request) (wire.Conn, error) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return Wrap(c), nil
}
