package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCmdNick_RejectsNameOverMaxLength(t *testing.T) {
	r, hub := newTestHub(t)
	_, tr := newTestSession(r, hub, "10.0.0.1:1")
	recvContains(t, tr, "Welcome", time.Second)

	tooLong := strings.Repeat("a", maxNicknameLen+1)
	tr.send(t, "/nick "+tooLong)
	recvContains(t, tr, "Invalid nickname", time.Second)
}

func TestCmdNick_RejectsReservedName(t *testing.T) {
	r, hub := newTestHub(t)
	_, tr := newTestSession(r, hub, "10.0.0.1:1")
	recvContains(t, tr, "Welcome", time.Second)

	tr.send(t, "/nick Server")
	recvContains(t, tr, "reserved", time.Second)
}

func TestCmdJoin_RejectsRoomNameWithWhitespace(t *testing.T) {
	r, hub := newTestHub(t)
	_, tr := newTestSession(r, hub, "10.0.0.1:1")
	recvContains(t, tr, "Welcome", time.Second)
	nick(t, tr, "alice")

	tr.send(t, "/join chat room")
	recvContains(t, tr, "Invalid room name", time.Second)
}

func TestCmdPM_UnknownRecipientIsReportedToSender(t *testing.T) {
	r, hub := newTestHub(t)
	_, tr := newTestSession(r, hub, "10.0.0.1:1")
	recvContains(t, tr, "Welcome", time.Second)
	nick(t, tr, "alice")

	tr.send(t, "/pm ghost hello")
	recvContains(t, tr, "No such user: ghost", time.Second)
}

func TestCmdAuth_RejectedOnPlainSession(t *testing.T) {
	r, hub := newTestHub(t)
	_, tr := newTestSession(r, hub, "10.0.0.1:1")
	recvContains(t, tr, "Welcome", time.Second)

	tr.send(t, "/auth admin changeit")
	recvContains(t, tr, "Unknown command: /auth", time.Second)
}

func TestCmdAuth_AcceptsCorrectCredentialOverTLS(t *testing.T) {
	r, hub := newTestHub(t)
	trTLS := newFakeTransport("10.0.0.9:1")
	sess := NewSession(hub, trTLS, r.MakeSerializer(), true, 0, 0)
	sess.Start()
	recvContains(t, trTLS, "Welcome", time.Second)

	trTLS.send(t, "/auth admin wrong")
	recvContains(t, trTLS, "Authentication failed", time.Second)
	assert.False(t, sess.isAuthenticated())

	trTLS.send(t, "/auth admin changeit")
	recvContains(t, trTLS, "Authenticated", time.Second)
	assert.True(t, sess.isAuthenticated())
}

func TestProcessMessage_DropsFramesBeyondInboundBurst(t *testing.T) {
	r, hub := newTestHub(t)
	_, trA := newTestSession(r, hub, "10.0.0.1:1")
	_, trB := newTestSession(r, hub, "10.0.0.2:1")
	recvContains(t, trA, "Welcome", time.Second)
	recvContains(t, trB, "Welcome", time.Second)
	nick(t, trA, "alice")
	nick(t, trB, "bob")

	const sent = inboundBurst + 10
	for i := 0; i < sent; i++ {
		trA.send(t, "hello")
	}

	received := 0
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case <-trB.outbox:
			received++
		case <-time.After(100 * time.Millisecond):
		}
	}
	assert.Less(t, received, sent)
	assert.GreaterOrEqual(t, received, inboundBurst)
}

func TestValidToken(t *testing.T) {
	assert.True(t, validToken("alice", 20))
	assert.False(t, validToken("", 20))
	assert.False(t, validToken("has space", 20))
	assert.False(t, validToken(strings.Repeat("a", 21), 20))
}
