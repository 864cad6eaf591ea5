package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/cherryrecorder/edge-server/internal/logger"
	"github.com/cherryrecorder/edge-server/internal/reactor"
)

// inboundRate and inboundBurst bound how fast a single session can feed
// text frames into its own serializer — the per-session counterpart to
// the HTTP facade's per-IP limiter, guarding the hub against one flooding
// client starving every other session's turn on the reactor.
const (
	inboundRate  = 10
	inboundBurst = 20
)

// DefaultQueueBound is the outbound queue capacity applied when a session is
// constructed with queueBound <= 0. The bound is a NewSession parameter;
// the WebSocket listeners pass DefaultQueueBound, and Config has no field
// for it.
const DefaultQueueBound = 256

const welcomeBanner = "* Welcome. Type /help for a list of commands."

const helpText = "* Commands: /nick <name>, /join <room>, /leave, /users, /pm <nick> <msg>, /quit"

// Session is the narrow exported surface of a chat connection. Hub does not
// go through it: the hub holds *chatSession directly and also uses its
// unexported setters (setNickname, setCurrentRoom).
type Session interface {
	Deliver(msg string)
	Stop()
	Nickname() string
	RemoteID() string
	CurrentRoom() string
	GetSerializer() *reactor.Serializer
}

// chatSession is the one concrete type behind Session; the plain/TLS split
// lives in which Transport it holds (see transport.go) and in the isTLS
// flag that gates /auth, not in a second session type — Go has no use for two
// struct definitions that would differ only in which interface method they
// forward to.
//
// Every field below is either read-only after construction (hub, transport,
// serializer, remoteID, isTLS, queueBound, idleTimeout), touched only from
// this session's own serializer (stopped, queue, writing), or guarded by mu
// because ChatHub's registry paths occasionally need a safe read from its
// own serializer instead (nickname, currentRoom, authenticated) — the same
// narrow-mutex-despite-serializer-confinement stance the hub takes for its
// own maps.
type chatSession struct {
	hub         *Hub
	transport   Transport
	serializer  *reactor.Serializer
	remoteID    string
	isTLS       bool
	queueBound  int
	idleTimeout time.Duration
	limiter     *rate.Limiter

	mu            sync.RWMutex
	nickname      string
	currentRoom   string
	authenticated bool

	stopped bool
	queue   [][]byte
	writing bool
}

// NewSession constructs a session in the AcceptPending state. The transport
// has already completed its TLS and WebSocket handshakes by the time this is
// called — net/http and gorilla/websocket perform both synchronously before
// a handler ever runs, so the explicit handshake states of a callback-driven
// design collapse here into "already done by the time Start is invoked".
func NewSession(hub *Hub, transport Transport, serializer *reactor.Serializer, isTLS bool, queueBound int, idleTimeout time.Duration) *chatSession {
	if queueBound <= 0 {
		queueBound = DefaultQueueBound
	}
	remoteID := transport.RemoteAddr()
	return &chatSession{
		hub:         hub,
		transport:   transport,
		serializer:  serializer,
		remoteID:    remoteID,
		isTLS:       isTLS,
		queueBound:  queueBound,
		idleTimeout: idleTimeout,
		limiter:     rate.NewLimiter(inboundRate, inboundBurst),
		nickname:    remoteID,
	}
}

// Start moves the session to Registered: send the welcome banner, register
// with the hub (no join broadcast yet — nickname still equals remote_id),
// and begin the read loop.
func (s *chatSession) Start() {
	s.serializer.Post(func() {
		s.Deliver(welcomeBanner)
		s.hub.Join(s)
		go s.readLoop()
	})
}

// readLoop is the dedicated per-connection goroutine a blocking ReadMessage
// call requires; it never touches session state directly, it only posts
// parsed text onto the session's own serializer, preserving the FIFO,
// non-overlapping execution the rest of this package depends on.
func (s *chatSession) readLoop() {
	for {
		if s.idleTimeout > 0 {
			_ = s.transport.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		mt, data, err := s.transport.ReadMessage()
		if err != nil {
			s.serializer.Post(func() { s.initiateClose(err) })
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		text := string(data)
		s.serializer.Post(func() { s.processMessage(text) })
	}
}

// Deliver enqueues msg for this session on the outbound write pipeline.
// It is safe to call from any goroutine. Most call sites
// (command handlers, Start) are already running on this session's own
// serializer, so this uses Dispatch rather than Post — it runs inline for
// those and falls back to a deferred post for hub-originated deliveries.
func (s *chatSession) Deliver(msg string) {
	payload := []byte(msg)
	s.serializer.Dispatch(func() {
		if s.stopped {
			return
		}
		if len(s.queue) >= s.queueBound {
			logger.WebSocket().Warn().
				Str("remote_id", s.remoteID).
				Int("bound", s.queueBound).
				Msg("outbound queue full, dropping message for slow reader")
			return
		}
		s.queue = append(s.queue, payload)
		if !s.writing {
			s.doWrite()
		}
	})
}

// doWrite writes the head-of-queue message synchronously, on the reactor
// worker that is draining this session's serializer. That worker stays
// occupied until WriteMessage returns, and no write deadline is set, so a
// peer that stops reading holds one worker for as long as the write blocks;
// other sessions' serializers run only on the remaining workers meanwhile.
func (s *chatSession) doWrite() {
	if len(s.queue) == 0 {
		return
	}
	s.writing = true
	msg := s.queue[0]
	err := s.transport.WriteMessage(websocket.TextMessage, msg)
	s.onWriteComplete(err)
}

// onWriteComplete runs on this session's serializer (doWrite is always
// called from a serializer task): clear writing, pop the head only on
// success, keep the pipeline moving if more is queued, or flush and close
// on a real write error.
func (s *chatSession) onWriteComplete(err error) {
	s.writing = false
	if err != nil {
		s.queue = nil
		s.initiateClose(err)
		return
	}
	s.queue = s.queue[1:]
	if len(s.queue) > 0 && !s.stopped {
		s.doWrite()
	}
}

// initiateClose enters Closing. It must run on this session's own
// serializer so the stopped transition happens exactly once and the single
// ChatHub.Leave call required on close is not at risk of a race.
func (s *chatSession) initiateClose(err error) {
	if s.stopped {
		return
	}
	s.stopped = true
	if err != nil {
		logger.WebSocket().Info().Err(err).Str("remote_id", s.remoteID).Msg("closing session")
	} else {
		logger.WebSocket().Info().Str("remote_id", s.remoteID).Msg("closing session")
	}
	_ = s.transport.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.transport.Close()
	s.hub.Leave(s)
}

// Stop requests an orderly close from outside the session's own serializer
// — used by ChatHub during process shutdown.
func (s *chatSession) Stop() {
	s.serializer.Post(func() { s.initiateClose(nil) })
}

func (s *chatSession) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

func (s *chatSession) setNickname(n string) {
	s.mu.Lock()
	s.nickname = n
	s.mu.Unlock()
}

func (s *chatSession) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoom
}

func (s *chatSession) setCurrentRoom(r string) {
	s.mu.Lock()
	s.currentRoom = r
	s.mu.Unlock()
}

func (s *chatSession) RemoteID() string { return s.remoteID }

func (s *chatSession) GetSerializer() *reactor.Serializer { return s.serializer }

func (s *chatSession) isAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *chatSession) setAuthenticated(v bool) {
	s.mu.Lock()
	s.authenticated = v
	s.mu.Unlock()
}
