package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/domain"
)

type callPhase int

const (
	phaseRinging callPhase = iota + 1
	phaseNegotiating
	phaseActive
)

func (p callPhase) String() string {
	switch p {
	case phaseRinging:
		return "ringing"
	case phaseNegotiating:
		return "negotiating"
	case phaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// pairKey identifies a call session by who initiated it.
type pairKey struct {
	caller   string
	receiver string
}

type callSession struct {
	callType domain.CallType
	phase    callPhase
}

// callTable tracks in-flight call sessions. A session exists from initiate
// until a terminal event (end, reject, disconnect of either party) removes
// it; "ended" is represented by absence, which is what makes call:end
// idempotent for free.
//
// Glare policy: first initiator wins. A call:initiate for a pair that
// already has a live session in either direction is dropped; no busy event
// is synthesized because the protocol has none and the losing caller's UI
// already owns a ring timeout. There is likewise no server-side timeout on
// ringing or negotiating.
type callTable struct {
	mu       sync.Mutex
	sessions map[pairKey]*callSession
}

func newCallTable() *callTable {
	return &callTable{sessions: make(map[pairKey]*callSession)}
}

// live returns the session between the two users regardless of who called.
func (t *callTable) live(a, b string) (pairKey, *callSession, bool) {
	if s, ok := t.sessions[pairKey{a, b}]; ok {
		return pairKey{a, b}, s, true
	}
	if s, ok := t.sessions[pairKey{b, a}]; ok {
		return pairKey{b, a}, s, true
	}
	return pairKey{}, nil, false
}

func (t *callTable) initiate(callerID, receiverID string, callType domain.CallType) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if key, s, ok := t.live(callerID, receiverID); ok {
		log.Warn().Str("module", "relay.calls").
			Str("caller", callerID).Str("receiver", receiverID).
			Str("existingCaller", key.caller).Str("phase", s.phase.String()).
			Msg("dropping call:initiate, session already live")
		return false
	}
	t.sessions[pairKey{callerID, receiverID}] = &callSession{callType: callType, phase: phaseRinging}
	log.Info().Str("module", "relay.calls").
		Str("caller", callerID).Str("receiver", receiverID).Str("callType", string(callType)).
		Msg("call ringing")
	return true
}

func (t *callTable) accept(callerID, receiverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[pairKey{callerID, receiverID}]
	if !ok || s.phase != phaseRinging {
		log.Warn().Str("module", "relay.calls").
			Str("caller", callerID).Str("receiver", receiverID).
			Msg("dropping call:accept without ringing session")
		return false
	}
	s.phase = phaseNegotiating
	return true
}

func (t *callTable) reject(callerID, receiverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[pairKey{callerID, receiverID}]
	if !ok || s.phase != phaseRinging {
		return false
	}
	delete(t.sessions, pairKey{callerID, receiverID})
	log.Info().Str("module", "relay.calls").
		Str("caller", callerID).Str("receiver", receiverID).Msg("call rejected")
	return true
}

// end removes the session between the two users. Returns false when no live
// session exists, which makes a duplicate call:end a no-op.
func (t *callTable) end(callerID, receiverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, _, ok := t.live(callerID, receiverID)
	if !ok {
		return false
	}
	delete(t.sessions, key)
	log.Info().Str("module", "relay.calls").
		Str("caller", key.caller).Str("receiver", key.receiver).Msg("call ended")
	return true
}

// onOffer and onAnswer advance the negotiation phase when the SDP exchange
// matches a live session. The SDP itself is relayed regardless; the table
// only tracks phase.
func (t *callTable) onOffer(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, s, ok := t.live(from, to); ok && s.phase == phaseRinging {
		s.phase = phaseNegotiating
	}
}

func (t *callTable) onAnswer(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, s, ok := t.live(from, to); ok && s.phase == phaseNegotiating {
		s.phase = phaseActive
	}
}

// dropAllFor removes every session the identity takes part in and returns
// the peers that should be told the call ended.
func (t *callTable) dropAllFor(identity string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var peers []string
	for key := range t.sessions {
		switch identity {
		case key.caller:
			peers = append(peers, key.receiver)
			delete(t.sessions, key)
		case key.receiver:
			peers = append(peers, key.caller)
			delete(t.sessions, key)
		}
	}
	if len(peers) > 0 {
		log.Info().Str("module", "relay.calls").Str("user", identity).
			Int("sessions", len(peers)).Msg("dropped calls on disconnect")
	}
	return peers
}
