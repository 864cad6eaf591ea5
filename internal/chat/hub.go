package chat

import (
	"fmt"
	"sort"
	"sync"
	"weak"

	"github.com/cherryrecorder/edge-server/internal/history"
	"github.com/cherryrecorder/edge-server/internal/logger"
	"github.com/cherryrecorder/edge-server/internal/reactor"
)

// Hub is the process-wide registry: the live session set, the
// nickname→session map, and the room→Room map, all
// mutated on a single serializer so that cross-session fan-out never races
// against itself. The nickname and room maps additionally carry their own
// mutex, even though every mutation already runs on hub.serializer, because
// Room.Broadcast can be invoked while iterating a room snapshot taken from a
// different serializer's perspective in future extensions — narrower
// locking there costs nothing today and avoids relitigating the ownership
// question later. Lock order when both are needed: nicknameMu then roomsMu.
type Hub struct {
	serializer *reactor.Serializer
	history    *history.Store

	sessions map[*chatSession]struct{}

	nicknameMu sync.Mutex
	nicknames  map[string]weak.Pointer[chatSession]

	roomsMu sync.Mutex
	rooms   map[string]*Room

	roomCapacity int
	stopped      bool
}

// NewHub constructs a Hub with its own serializer drawn from r. hist may be
// a disabled *history.Store (history.New("")) — all history calls below are
// no-ops in that case.
func NewHub(r *reactor.Reactor, hist *history.Store, roomCapacity int) *Hub {
	if roomCapacity <= 0 {
		roomCapacity = DefaultRoomCapacity
	}
	return &Hub{
		serializer:   r.MakeSerializer(),
		history:      hist,
		sessions:     make(map[*chatSession]struct{}),
		nicknames:    make(map[string]weak.Pointer[chatSession]),
		rooms:        make(map[string]*Room),
		roomCapacity: roomCapacity,
	}
}

// Join registers s in the live session set. No join notice is emitted here
// — the session's nickname still equals its remote_id at this point.
func (h *Hub) Join(s *chatSession) {
	h.serializer.Post(func() {
		h.sessions[s] = struct{}{}
		logger.Hub().Info().Str("remote_id", s.RemoteID()).Msg("session registered")
	})
}

// Leave removes s from every room it occupies, releases its nickname if it
// had registered one distinct from its remote_id, removes it from the
// session set, and emits a global leave notice — but only if it ever had a
// real nickname.
func (h *Hub) Leave(s *chatSession) {
	h.serializer.Post(func() {
		h.leaveAllRoomsLocked(s)

		nick := s.Nickname()
		hadRealNickname := nick != s.RemoteID()
		if hadRealNickname {
			h.releaseNicknameLocked(nick, s)
		}
		delete(h.sessions, s)
		logger.Hub().Info().Str("remote_id", s.RemoteID()).Msg("session left")

		if hadRealNickname {
			h.broadcastLocked(fmt.Sprintf("* 사용자 '%s'님이 퇴장했습니다.", nick), nil)
		}
	})
}

// TryRegisterNickname attempts to acquire name for s: acquirable if
// absent, if the existing weak reference has expired, or if already bound
// to s itself. cb runs on s's own serializer, never inline on the hub's.
func (h *Hub) TryRegisterNickname(name string, s *chatSession, cb func(bool)) {
	h.serializer.Post(func() {
		ok := h.acquireNicknameLocked(name, s)
		s.GetSerializer().Post(func() { cb(ok) })
	})
}

func (h *Hub) acquireNicknameLocked(name string, s *chatSession) bool {
	h.nicknameMu.Lock()
	defer h.nicknameMu.Unlock()

	if wp, exists := h.nicknames[name]; exists {
		if existing := wp.Value(); existing != nil && existing != s {
			return false
		}
	}

	old := s.Nickname()
	if old != s.RemoteID() && old != name {
		delete(h.nicknames, old)
	}
	h.nicknames[name] = weak.Make(s)
	s.setNickname(name)
	return true
}

func (h *Hub) releaseNicknameLocked(name string, s *chatSession) {
	h.nicknameMu.Lock()
	defer h.nicknameMu.Unlock()
	if wp, exists := h.nicknames[name]; exists {
		if existing := wp.Value(); existing == nil || existing == s {
			delete(h.nicknames, name)
		}
	}
}

// FindSessionByNickname resolves name to a live session, evicting it from
// the map first if its weak reference has already expired.
func (h *Hub) FindSessionByNickname(name string, cb func(*chatSession)) {
	h.serializer.Post(func() {
		h.nicknameMu.Lock()
		var found *chatSession
		if wp, exists := h.nicknames[name]; exists {
			found = wp.Value()
			if found == nil {
				delete(h.nicknames, name)
			}
		}
		h.nicknameMu.Unlock()
		cb(found)
	})
}

// GetUserList returns the live, sorted nickname list, evicting any expired
// weak references discovered along the way.
func (h *Hub) GetUserList(cb func([]string)) {
	h.serializer.Post(func() {
		h.nicknameMu.Lock()
		names := make([]string, 0, len(h.nicknames))
		for name, wp := range h.nicknames {
			if wp.Value() == nil {
				delete(h.nicknames, name)
				continue
			}
			names = append(names, name)
		}
		h.nicknameMu.Unlock()
		sort.Strings(names)
		cb(names)
	})
}

// Broadcast delivers msg to every live session except sender (sender may be
// nil for a system-originated message), and logs it to global history.
func (h *Hub) Broadcast(msg string, sender *chatSession) {
	h.serializer.Post(func() { h.broadcastLocked(msg, sender) })
}

func (h *Hub) broadcastLocked(msg string, sender *chatSession) {
	for s := range h.sessions {
		if s == sender {
			continue
		}
		s.Deliver(msg)
	}
	if h.history != nil {
		_ = h.history.Global(historySender(sender), msg)
	}
}

// BroadcastToRoom delivers msg to room's participants except sender, and
// logs it to that room's history.
func (h *Hub) BroadcastToRoom(room, msg string, sender *chatSession) {
	h.serializer.Post(func() {
		h.roomsMu.Lock()
		r, ok := h.rooms[room]
		h.roomsMu.Unlock()
		if !ok {
			return
		}
		r.Broadcast(msg, sender)
		if h.history != nil {
			_ = h.history.Room(room, historySender(sender), msg)
		}
	})
}

// SendPrivate resolves receiverNick, delivers toRecipient to it and
// toSender back to sender, and logs to the pair's private history. If
// receiverNick does not resolve, sender receives notFoundMsg instead.
func (h *Hub) SendPrivate(toRecipient, toSender, notFoundMsg string, sender *chatSession, receiverNick string) {
	h.serializer.Post(func() {
		h.nicknameMu.Lock()
		var receiver *chatSession
		if wp, exists := h.nicknames[receiverNick]; exists {
			receiver = wp.Value()
			if receiver == nil {
				delete(h.nicknames, receiverNick)
			}
		}
		h.nicknameMu.Unlock()

		if receiver == nil {
			sender.Deliver(notFoundMsg)
			return
		}
		receiver.Deliver(toRecipient)
		sender.Deliver(toSender)
		if h.history != nil {
			_ = h.history.Private(sender.Nickname(), receiverNick, sender.Nickname(), toRecipient)
		}
	})
}

// JoinRoom leaves s's previous room (if any), then joins or creates room.
// cb(false, nil) on capacity exceeded; otherwise cb(true, members) with the
// post-join member list.
func (h *Hub) JoinRoom(room string, s *chatSession, cb func(ok bool, members []string)) {
	h.serializer.Post(func() {
		if prev := s.CurrentRoom(); prev != "" {
			h.leaveRoomLocked(prev, s)
		}

		h.roomsMu.Lock()
		r, exists := h.rooms[room]
		if !exists {
			r = newRoom(room, h.roomCapacity)
			h.rooms[room] = r
		}
		if r.Len() >= r.capacity {
			h.roomsMu.Unlock()
			cb(false, nil)
			return
		}
		r.participants[s] = struct{}{}
		h.roomsMu.Unlock()

		s.setCurrentRoom(room)
		r.Broadcast(fmt.Sprintf("* %s님이 입장했습니다.", s.Nickname()), s)

		h.roomsMu.Lock()
		members := r.Members()
		h.roomsMu.Unlock()
		cb(true, members)
	})
}

// LeaveRoom leaves s's current room, if any. cb(false) if it had none.
func (h *Hub) LeaveRoom(s *chatSession, cb func(ok bool)) {
	h.serializer.Post(func() {
		room := s.CurrentRoom()
		if room == "" {
			cb(false)
			return
		}
		h.leaveRoomLocked(room, s)
		cb(true)
	})
}

func (h *Hub) leaveRoomLocked(room string, s *chatSession) {
	h.roomsMu.Lock()
	r, ok := h.rooms[room]
	if !ok {
		h.roomsMu.Unlock()
		return
	}
	delete(r.participants, s)
	if r.Len() == 0 {
		delete(h.rooms, room)
	}
	h.roomsMu.Unlock()

	s.setCurrentRoom("")
	r.Broadcast(fmt.Sprintf("* %s님이 퇴장했습니다.", s.Nickname()), s)
}

func (h *Hub) leaveAllRoomsLocked(s *chatSession) {
	if room := s.CurrentRoom(); room != "" {
		h.leaveRoomLocked(room, s)
	}
}

// Stop closes every registered session from its own serializer, as the
// last step of process shutdown. It blocks until each session's close has
// been posted to that session's serializer; the closes themselves run
// afterwards, on those serializers. Safe to call more than once.
// Synchronous on purpose: the
// caller (lifecycle.Manager.Shutdown) stops the reactor right after this
// returns, and the reactor must not be stopped while the hub's posted
// closure — and the per-session Stop calls it makes, which themselves post
// to the reactor — is still in flight.
func (h *Hub) Stop() {
	done := make(chan struct{})
	h.serializer.Post(func() {
		defer close(done)
		if h.stopped {
			return
		}
		h.stopped = true
		for s := range h.sessions {
			s.Stop()
		}
	})
	<-done
}

func historySender(sender *chatSession) string {
	if sender == nil {
		return "system"
	}
	return sender.Nickname()
}
