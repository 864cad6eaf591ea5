package chat

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cherryrecorder/edge-server/internal/logger"
)

const (
	maxNicknameLen = 20
	maxRoomNameLen = 30
)

var reservedNicknames = map[string]struct{}{
	"Server": {},
	"system": {},
}

// authUsername/authPasswordHash back the reserved /auth command. The
// password is hashed at process start rather than checked in via a literal
// hash string — this command is a stub with no other command depending on
// it, so there is no real credential to protect, but it still exercises
// bcrypt the way a genuine credential check would.
var (
	authUsername     = "admin"
	authPasswordHash []byte
)

func init() {
	hash, err := bcrypt.GenerateFromPassword([]byte("changeit"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	authPasswordHash = hash
}

// processMessage is the single entry point for a parsed inbound text frame,
// always invoked from this session's own serializer.
func (s *chatSession) processMessage(text string) {
	if s.stopped {
		return
	}
	if !s.limiter.Allow() {
		logger.WebSocket().Warn().Str("remote_id", s.remoteID).Msg("dropping inbound message, rate limit exceeded")
		return
	}
	if strings.HasPrefix(text, "/") {
		s.handleCommand(text)
		return
	}
	s.handleChat(text)
}

func (s *chatSession) handleChat(body string) {
	nick := s.Nickname()
	if room := s.CurrentRoom(); room != "" {
		s.hub.BroadcastToRoom(room, fmt.Sprintf("[%s @ %s]: %s", nick, room, body), s)
		return
	}
	s.hub.Broadcast(fmt.Sprintf("[%s]: %s", nick, body), s)
}

func (s *chatSession) handleCommand(line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "/nick":
		s.cmdNick(args)
	case "/join":
		s.cmdJoin(args)
	case "/leave":
		s.cmdLeave()
	case "/users":
		s.cmdUsers()
	case "/pm":
		s.cmdPM(args)
	case "/help":
		s.cmdHelp()
	case "/quit":
		s.cmdQuit()
	case "/auth":
		s.cmdAuth(args)
	default:
		s.Deliver(fmt.Sprintf("* Unknown command: %s", cmd))
	}
}

func (s *chatSession) cmdNick(name string) {
	if !validToken(name, maxNicknameLen) {
		s.Deliver(fmt.Sprintf("* Invalid nickname: '%s' (must be non-empty, contain no spaces, and be at most %d characters)", name, maxNicknameLen))
		return
	}
	if _, reserved := reservedNicknames[name]; reserved {
		s.Deliver(fmt.Sprintf("* Nickname '%s' is reserved.", name))
		return
	}

	old := s.Nickname()
	firstRealNickname := old == s.RemoteID()

	s.hub.TryRegisterNickname(name, s, func(ok bool) {
		if !ok {
			s.Deliver(fmt.Sprintf("* Nickname '%s' is already taken.", name))
			return
		}
		switch {
		case firstRealNickname:
			s.hub.Broadcast(fmt.Sprintf("* 사용자 '%s'님이 입장했습니다.", name), nil)
		case old != name:
			s.hub.Broadcast(fmt.Sprintf("* '%s'님이 '%s'(으)로 닉네임을 변경했습니다.", old, name), nil)
		}
		s.Deliver(fmt.Sprintf("* Nickname set to '%s'.", name))
	})
}

func (s *chatSession) cmdJoin(room string) {
	if !validToken(room, maxRoomNameLen) {
		s.Deliver(fmt.Sprintf("* Invalid room name: '%s' (must be non-empty, contain no spaces, and be at most %d characters)", room, maxRoomNameLen))
		return
	}

	s.hub.JoinRoom(room, s, func(ok bool, members []string) {
		if !ok {
			s.Deliver(fmt.Sprintf("* Room '%s' is full.", room))
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "* Joined '%s'. Members: ", room)
		for i, m := range members {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m)
			if m == s.Nickname() {
				b.WriteString(" (You)")
			}
		}
		s.Deliver(b.String())
	})
}

func (s *chatSession) cmdLeave() {
	s.hub.LeaveRoom(s, func(ok bool) {
		if !ok {
			s.Deliver("* You are not in a room.")
		}
	})
}

func (s *chatSession) cmdUsers() {
	self := s.Nickname()
	s.hub.GetUserList(func(names []string) {
		var b strings.Builder
		b.WriteString("* Users: ")
		for i, n := range names {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(n)
			if n == self {
				b.WriteString(" (You)")
			}
		}
		s.Deliver(b.String())
	})
}

func (s *chatSession) cmdPM(args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		s.Deliver("* Usage: /pm <nick> <message>")
		return
	}
	target, body := parts[0], parts[1]
	sender := s.Nickname()
	s.hub.SendPrivate(
		fmt.Sprintf("[PM from %s]: %s", sender, body),
		fmt.Sprintf("* To %s: %s", target, body),
		fmt.Sprintf("* No such user: %s", target),
		s, target,
	)
}

func (s *chatSession) cmdHelp() {
	s.Deliver(helpText)
}

func (s *chatSession) cmdQuit() {
	s.Deliver("* Goodbye.")
	s.initiateClose(nil)
}

// cmdAuth backs the reserved /auth command, accepted only on the TLS
// session variant.
func (s *chatSession) cmdAuth(args string) {
	if !s.isTLS {
		s.Deliver("* Unknown command: /auth")
		return
	}
	parts := strings.SplitN(args, " ", 2)
	if len(parts) != 2 {
		s.Deliver("* Usage: /auth <username> <password>")
		return
	}
	user, pass := parts[0], parts[1]
	if user != authUsername || bcrypt.CompareHashAndPassword(authPasswordHash, []byte(pass)) != nil {
		s.Deliver("* Authentication failed.")
		return
	}
	s.setAuthenticated(true)
	s.Deliver("* Authenticated.")
}

// validToken enforces the shared nickname/room-name shape: non-empty, no
// whitespace, at most maxLen runes.
func validToken(tok string, maxLen int) bool {
	if tok == "" || len([]rune(tok)) > maxLen {
		return false
	}
	return !strings.ContainsAny(tok, " \t\r\n")
}
