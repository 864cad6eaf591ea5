// Package transport owns the four listeners the core starts at boot: plain
// and TLS HTTP for the REST facade, plain and TLS WebSocket for chat. Each
// listener's constructor binds and listens eagerly so a port conflict or bad
// TLS material fails loudly at startup rather than surfacing later as a
// silent accept-loop death.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cherryrecorder/edge-server/internal/chat"
	"github.com/cherryrecorder/edge-server/internal/logger"
	"github.com/cherryrecorder/edge-server/internal/reactor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HTTPListener serves the REST facade's gin engine over a plain or TLS
// net.Listener. Closing it asks the underlying http.Server to shut down
// gracefully; it does not forcibly cut in-flight requests.
type HTTPListener struct {
	ln     net.Listener
	server *http.Server
	isTLS  bool
}

// NewHTTPListener binds addr and returns a listener serving handler in the
// clear. Bind/listen failure is returned to the caller rather than handled
// here — startup treats it as fatal.
func NewHTTPListener(addr string, handler http.Handler) (*HTTPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	return &HTTPListener{ln: ln, server: &http.Server{Handler: handler}}, nil
}

// NewHTTPSListener binds addr and wraps it in a TLS listener using cert. An
// unreadable or mismatched certificate/key pair is the caller's
// responsibility to have already surfaced via tls.LoadX509KeyPair before
// this is called.
func NewHTTPSListener(addr string, handler http.Handler, cert tls.Certificate) (*HTTPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	tlsLn := tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	return &HTTPListener{ln: tlsLn, server: &http.Server{Handler: handler}, isTLS: true}, nil
}

// Run blocks, accepting and serving connections until Close is called.
func (l *HTTPListener) Run() {
	proto := "http"
	if l.isTLS {
		proto = "https"
	}
	logger.HTTP().Info().Str("addr", l.ln.Addr().String()).Str("proto", proto).Msg("listener started")
	if err := l.server.Serve(l.ln); err != nil && err != http.ErrServerClosed {
		logger.HTTP().Error().Err(err).Str("proto", proto).Msg("listener stopped")
	}
}

// Close stops accepting new connections and lets in-flight requests finish,
// bounded by a short grace period.
func (l *HTTPListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}

// WSListener accepts WebSocket upgrades and pairs each resulting connection
// with a fresh Serializer and chat session. Go's WebSocket library upgrades
// from inside an HTTP handler rather than from a raw accept loop, so the
// accept loop here is net/http's own — upgrade failures and non-WS requests
// are handled per-request without tearing down the listener, matching the
// "log and continue" rule for transient accept errors.
type WSListener struct {
	ln          net.Listener
	server      *http.Server
	reactor     *reactor.Reactor
	hub         *chat.Hub
	isTLS       bool
	idleTimeout time.Duration
}

// NewWSListener binds addr and serves plain WebSocket upgrades, posting each
// new session onto a fresh serializer drawn from r.
func NewWSListener(addr string, r *reactor.Reactor, hub *chat.Hub, idleTimeout time.Duration) (*WSListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	l := &WSListener{ln: ln, reactor: r, hub: hub, idleTimeout: idleTimeout}
	l.server = &http.Server{Handler: http.HandlerFunc(l.accept)}
	return l, nil
}

// NewWSSListener is NewWSListener's TLS counterpart.
func NewWSSListener(addr string, r *reactor.Reactor, hub *chat.Hub, idleTimeout time.Duration, cert tls.Certificate) (*WSListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", addr, err)
	}
	tlsLn := tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12})
	l := &WSListener{ln: tlsLn, reactor: r, hub: hub, isTLS: true, idleTimeout: idleTimeout}
	l.server = &http.Server{Handler: http.HandlerFunc(l.accept)}
	return l, nil
}

func (l *WSListener) accept(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocket().Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	var t chat.Transport
	if l.isTLS {
		t = chat.NewTLSTransport(conn)
	} else {
		t = chat.NewPlainTransport(conn)
	}

	session := chat.NewSession(l.hub, t, l.reactor.MakeSerializer(), l.isTLS, chat.DefaultQueueBound, l.idleTimeout)
	session.Start()
}

// Run blocks, accepting upgrade requests until Close is called.
func (l *WSListener) Run() {
	proto := "ws"
	if l.isTLS {
		proto = "wss"
	}
	logger.WebSocket().Info().Str("addr", l.ln.Addr().String()).Str("proto", proto).Msg("listener started")
	if err := l.server.Serve(l.ln); err != nil && err != http.ErrServerClosed {
		logger.WebSocket().Error().Err(err).Str("proto", proto).Msg("listener stopped")
	}
}

// Close stops accepting new upgrade requests. Sessions already registered
// with the hub are torn down separately, by Hub.Stop during shutdown.
func (l *WSListener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}
