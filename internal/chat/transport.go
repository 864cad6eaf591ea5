// Package chat implements the WebSocket multi-user chat service: per-session
// state machines, the nickname/room registry, and the bounded outbound write
// pipeline, built on gorilla/websocket framing and this core's
// reactor/Serializer scheduling instead of raw channels.
package chat

import (
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the surface a chatSession drives a connection through. Two
// concrete implementations exist — one over a plain TCP-accepted
// *websocket.Conn, one over a TLS-terminated one — standing in for the
// plain/TLS session variants: both share this single interface, so
// chatSession itself never branches on which it holds. The two differ only
// in the string Banner reports.
type Transport interface {
	ReadMessage() (messageType int, payload []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(time.Time) error
	SetWriteDeadline(time.Time) error
	RemoteAddr() string
	Banner() string
}

type wsTransport struct {
	conn *websocket.Conn
	tls  bool
}

// NewPlainTransport wraps an already-upgraded WebSocket connection accepted
// over a plain TCP listener.
func NewPlainTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

// NewTLSTransport wraps an already-upgraded WebSocket connection accepted
// over a TLS listener.
func NewTLSTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn, tls: true}
}

func (t *wsTransport) ReadMessage() (int, []byte, error)      { return t.conn.ReadMessage() }
func (t *wsTransport) WriteMessage(mt int, data []byte) error { return t.conn.WriteMessage(mt, data) }
func (t *wsTransport) Close() error                           { return t.conn.Close() }
func (t *wsTransport) SetReadDeadline(d time.Time) error      { return t.conn.SetReadDeadline(d) }
func (t *wsTransport) SetWriteDeadline(d time.Time) error     { return t.conn.SetWriteDeadline(d) }
func (t *wsTransport) RemoteAddr() string                     { return t.conn.RemoteAddr().String() }

// Banner reports the Server banner string for this variant; plain and TLS
// transports differ only in this string. Nothing in the module sends it:
// the WebSocket upgrade response carries no Server header.
func (t *wsTransport) Banner() string {
	if t.tls {
		return "CherryRecorder/1.0 (WSS)"
	}
	return "CherryRecorder/1.0"
}
