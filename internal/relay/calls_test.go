package relay

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/chatline/internal/core"
	"github.com/avdeev/chatline/internal/domain"
)

func TestCallHappyPath(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "bob", CallType: domain.CallVideo})
	data, ok := bob.lastOf(t, "call:incoming")
	require.True(t, ok)
	assert.JSONEq(t, `{"callerId":"alice","callType":"video"}`, string(data))

	h.HandleEvent("bob", core.CallAccept{CallerID: "alice", ReceiverID: "bob"})
	data, ok = alice.lastOf(t, "call:accepted")
	require.True(t, ok)
	assert.JSONEq(t, `{"receiverId":"bob"}`, string(data))

	h.HandleEvent("bob", core.CallEnd{CallerID: "alice", ReceiverID: "bob"})
	assert.Equal(t, 1, alice.countOf(t, "call:ended"))
	assert.Equal(t, 1, bob.countOf(t, "call:ended"))

	// A duplicate end from the other party is a no-op.
	h.HandleEvent("alice", core.CallEnd{CallerID: "alice", ReceiverID: "bob"})
	assert.Equal(t, 1, alice.countOf(t, "call:ended"))
	assert.Equal(t, 1, bob.countOf(t, "call:ended"))
}

func TestCallReject(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "bob", CallType: domain.CallAudio})
	h.HandleEvent("bob", core.CallReject{CallerID: "alice", ReceiverID: "bob"})

	data, ok := alice.lastOf(t, "call:rejected")
	require.True(t, ok)
	assert.JSONEq(t, `{"receiverId":"bob"}`, string(data))

	// The session is gone: accepting now does nothing.
	h.HandleEvent("bob", core.CallAccept{CallerID: "alice", ReceiverID: "bob"})
	assert.Equal(t, 0, alice.countOf(t, "call:accepted"))
}

func TestCallInitiateToOfflineUser(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	h.Connect("alice", alice)

	before := len(alice.received(t))
	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "carol", CallType: domain.CallVideo})

	// Nothing is fabricated back to the caller; the ring timeout is the
	// caller UI's problem.
	assert.Equal(t, before, len(alice.received(t)))
}

func TestCallInitiateBadTypeDropped(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "bob", CallType: "screenshare"})
	assert.Equal(t, 0, bob.countOf(t, "call:incoming"))
}

func TestCallGlareFirstInitiatorWins(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "bob", CallType: domain.CallAudio})
	h.HandleEvent("bob", core.CallInitiate{CallerID: "bob", ReceiverID: "alice", CallType: domain.CallAudio})

	assert.Equal(t, 1, bob.countOf(t, "call:incoming"), "first initiate rings")
	assert.Equal(t, 0, alice.countOf(t, "call:incoming"), "second initiate is dropped")
}

func TestOfferAnswerCandidatePassThrough(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "bob", CallType: domain.CallVideo})
	h.HandleEvent("bob", core.CallAccept{CallerID: "alice", ReceiverID: "bob"})

	h.HandleEvent("alice", core.CallOffer{
		Offer:      webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"},
		ReceiverID: "bob",
	})
	data, ok := bob.lastOf(t, "call:offer")
	require.True(t, ok)
	var offerOut struct {
		Offer    webrtc.SessionDescription `json:"offer"`
		SenderID string                    `json:"senderId"`
	}
	require.NoError(t, json.Unmarshal(data, &offerOut))
	assert.Equal(t, "alice", offerOut.SenderID)
	assert.Equal(t, "v=0 offer", offerOut.Offer.SDP)

	h.HandleEvent("bob", core.CallAnswer{
		Answer:   webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"},
		CallerID: "alice",
	})
	data, ok = alice.lastOf(t, "call:answer")
	require.True(t, ok)
	var answerOut struct {
		Answer   webrtc.SessionDescription `json:"answer"`
		SenderID string                    `json:"senderId"`
	}
	require.NoError(t, json.Unmarshal(data, &answerOut))
	assert.Equal(t, "bob", answerOut.SenderID)

	mid := "0"
	h.HandleEvent("alice", core.CallICECandidate{
		Candidate: webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid},
		TargetID:  "bob",
	})
	data, ok = bob.lastOf(t, "call:ice-candidate")
	require.True(t, ok)
	var candOut struct {
		Candidate webrtc.ICECandidateInit `json:"candidate"`
		SenderID  string                  `json:"senderId"`
	}
	require.NoError(t, json.Unmarshal(data, &candOut))
	assert.Equal(t, "alice", candOut.SenderID)
	assert.Equal(t, "candidate:1", candOut.Candidate.Candidate)
}

func TestDisconnectActsAsImplicitEnd(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("alice", core.CallInitiate{CallerID: "alice", ReceiverID: "bob", CallType: domain.CallAudio})
	h.HandleEvent("bob", core.CallAccept{CallerID: "alice", ReceiverID: "bob"})

	h.Disconnect("bob", bob)

	assert.Equal(t, 1, alice.countOf(t, "call:ended"))

	// The session is gone, so an explicit end afterwards is a no-op.
	h.HandleEvent("alice", core.CallEnd{CallerID: "alice", ReceiverID: "bob"})
	assert.Equal(t, 1, alice.countOf(t, "call:ended"))
}

func TestAcceptWithoutRingingDropped(t *testing.T) {
	h := NewHub()
	alice := &mockConn{}
	bob := &mockConn{}
	h.Connect("alice", alice)
	h.Connect("bob", bob)

	h.HandleEvent("bob", core.CallAccept{CallerID: "alice", ReceiverID: "bob"})
	assert.Equal(t, 0, alice.countOf(t, "call:accepted"))
}

func TestCallTablePhases(t *testing.T) {
	ct := newCallTable()

	require.True(t, ct.initiate("a", "b", domain.CallVideo))
	_, s, ok := ct.live("a", "b")
	require.True(t, ok)
	assert.Equal(t, phaseRinging, s.phase)

	require.True(t, ct.accept("a", "b"))
	assert.Equal(t, phaseNegotiating, s.phase)

	ct.onAnswer("b", "a")
	assert.Equal(t, phaseActive, s.phase)

	require.True(t, ct.end("b", "a"), "end works regardless of direction")
	assert.False(t, ct.end("a", "b"), "second end is a no-op")
}
