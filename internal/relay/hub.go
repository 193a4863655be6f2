// Package relay is the realtime core: it tracks which users are online,
// broadcasts presence, forwards ephemeral one-hop events (new-message and
// read notifications, typing) and shepherds call signaling between exactly
// two parties. Everything here is fire-and-forget: an offline target is a
// silent no-op, never an error.
package relay

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/core"
	"github.com/avdeev/chatline/internal/domain"
)

// Hub composes the connection registry, the presence broadcaster, the event
// relay and the call table.
type Hub struct {
	registry *Registry
	calls    *callTable

	// Anonymous connections (no identity in the handshake) still receive
	// presence broadcasts but are unreachable as relay targets.
	anonMu sync.Mutex
	anon   map[core.SignalConn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		registry: NewRegistry(),
		calls:    newCallTable(),
		anon:     make(map[core.SignalConn]struct{}),
	}
}

// Connect wires a new transport connection into the hub. An empty identity
// means the client connected without claiming a user; it stays anonymous.
func (h *Hub) Connect(identity string, conn core.SignalConn) {
	if identity == "" {
		h.anonMu.Lock()
		h.anon[conn] = struct{}{}
		h.anonMu.Unlock()
		log.Debug().Str("module", "relay.hub").Msg("anonymous connection attached")
		h.broadcastPresence()
		return
	}
	h.registry.Register(identity, conn)
	h.broadcastPresence()
}

// Disconnect tears down a connection's realtime state: any live call the
// user is part of ends toward the remaining party, then the registry entry
// is dropped (handle-guarded, so a stale teardown cannot evict a newer
// connection) and presence is rebroadcast.
func (h *Hub) Disconnect(identity string, conn core.SignalConn) {
	if identity == "" {
		h.anonMu.Lock()
		delete(h.anon, conn)
		h.anonMu.Unlock()
		return
	}
	if !h.registry.Unregister(identity, conn) {
		// Stale disconnect of a replaced connection; the newer one owns the
		// identity now, including its calls.
		return
	}
	for _, peer := range h.calls.dropAllFor(identity) {
		h.forward(peer, core.CallEnded{})
	}
	h.broadcastPresence()
}

// HandleEvent routes one decoded inbound event. from is the identity bound
// to the connection the event arrived on; events from anonymous connections
// are dropped because every event here needs an attributable sender.
func (h *Hub) HandleEvent(from string, ev core.Inbound) {
	if from == "" {
		log.Debug().Str("module", "relay.hub").Msg("dropping event from anonymous connection")
		return
	}

	switch e := ev.(type) {
	case core.CallInitiate:
		h.initiateCall(e)
	case core.CallAccept:
		if h.calls.accept(e.CallerID, e.ReceiverID) {
			h.forward(e.CallerID, core.CallAccepted{ReceiverID: e.ReceiverID})
		}
	case core.CallReject:
		if h.calls.reject(e.CallerID, e.ReceiverID) {
			h.forward(e.CallerID, core.CallRejected{ReceiverID: e.ReceiverID})
		}
	case core.CallEnd:
		if h.calls.end(e.CallerID, e.ReceiverID) {
			h.forward(e.CallerID, core.CallEnded{})
			h.forward(e.ReceiverID, core.CallEnded{})
		}
	case core.CallOffer:
		h.calls.onOffer(from, e.ReceiverID)
		h.forward(e.ReceiverID, core.RelayedOffer{Offer: e.Offer, SenderID: from})
	case core.CallAnswer:
		h.calls.onAnswer(from, e.CallerID)
		h.forward(e.CallerID, core.RelayedAnswer{Answer: e.Answer, SenderID: from})
	case core.CallICECandidate:
		h.forward(e.TargetID, core.RelayedCandidate{Candidate: e.Candidate, SenderID: from})
	case core.TypingStart:
		h.forward(e.ReceiverID, core.PeerTyping{SenderID: from})
	case core.TypingStop:
		h.forward(e.ReceiverID, core.PeerStoppedTyping{SenderID: from})
	}
}

func (h *Hub) initiateCall(e core.CallInitiate) {
	if !e.CallType.Valid() {
		log.Warn().Str("module", "relay.hub").Str("callType", string(e.CallType)).Msg("dropping call:initiate with bad call type")
		return
	}
	if !h.calls.initiate(e.CallerID, e.ReceiverID, e.CallType) {
		return
	}
	// If the receiver is offline nothing is sent and nothing is fabricated;
	// the caller's UI owns the ring timeout.
	h.forward(e.ReceiverID, core.IncomingCall{CallerID: e.CallerID, CallType: e.CallType})
}

// NotifyNewMessage forwards a persisted message to its receiver, if online.
func (h *Hub) NotifyNewMessage(msg *domain.Message) {
	h.forward(msg.ReceiverID, core.NewMessage{Message: *msg})
}

// NotifyMessagesRead tells the original sender that readBy has read their
// messages. Callers must only invoke this when at least one message actually
// changed state.
func (h *Hub) NotifyMessagesRead(readBy, senderID string) {
	h.forward(senderID, core.MessagesRead{ReadBy: readBy, SenderID: senderID})
}

// forward is the one-hop relay: resolve the target, send, drop if offline.
// A send failure tears down that connection only; its read loop exit will
// run the full Disconnect path.
func (h *Hub) forward(target string, ev core.Outbound) {
	conn, ok := h.registry.Resolve(target)
	if !ok {
		return
	}
	frame, err := core.EncodeOutbound(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "relay.hub").Str("event", ev.Event()).Msg("encode failed")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Str("module", "relay.hub").Str("user", target).Str("event", ev.Event()).Msg("send failed, closing connection")
		conn.Close()
	}
}

// broadcastPresence sends the full online set to every connection, the
// anonymous ones included. A slow or dead connection is closed and skipped;
// it must never stop delivery to the others.
func (h *Hub) broadcastPresence() {
	frame, err := core.EncodeOutbound(core.OnlineUsers(h.registry.Online()))
	if err != nil {
		log.Error().Err(err).Str("module", "relay.hub").Msg("encode presence failed")
		return
	}
	for _, snap := range h.registry.snapshot() {
		if err := snap.conn.TrySend(frame); err != nil {
			log.Warn().Str("module", "relay.hub").Str("user", snap.identity).Msg("presence send failed, closing connection")
			snap.conn.Close()
		}
	}
	h.anonMu.Lock()
	conns := make([]core.SignalConn, 0, len(h.anon))
	for c := range h.anon {
		conns = append(conns, c)
	}
	h.anonMu.Unlock()
	for _, c := range conns {
		if err := c.TrySend(frame); err != nil {
			c.Close()
		}
	}
}
