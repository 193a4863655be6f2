// Package core defines the wire protocol and the transport abstraction the
// relay fans out to. Events travel as a JSON envelope {"event": ..., "data": ...}
// with the event names the clients already speak.
package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/avdeev/chatline/internal/domain"
)

var ErrUnknownEvent = errors.New("unknown event")

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is the closed set of client-to-server events. Decoding yields
// exactly one of the structs below; the dispatcher switches over them
// exhaustively, so adding an event without handling it fails review, not
// production.
type Inbound interface{ inbound() }

type CallInitiate struct {
	CallerID   string          `json:"callerId"`
	ReceiverID string          `json:"receiverId"`
	CallType   domain.CallType `json:"callType"`
}

type CallAccept struct {
	CallerID   string `json:"callerId"`
	ReceiverID string `json:"receiverId"`
}

type CallReject struct {
	CallerID   string `json:"callerId"`
	ReceiverID string `json:"receiverId"`
}

type CallEnd struct {
	CallerID   string `json:"callerId"`
	ReceiverID string `json:"receiverId"`
}

type CallOffer struct {
	Offer      webrtc.SessionDescription `json:"offer"`
	ReceiverID string                    `json:"receiverId"`
}

type CallAnswer struct {
	Answer   webrtc.SessionDescription `json:"answer"`
	CallerID string                    `json:"callerId"`
}

type CallICECandidate struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	TargetID  string                  `json:"targetId"`
}

type TypingStart struct {
	ReceiverID string `json:"receiverId"`
}

type TypingStop struct {
	ReceiverID string `json:"receiverId"`
}

func (CallInitiate) inbound()     {}
func (CallAccept) inbound()       {}
func (CallReject) inbound()       {}
func (CallEnd) inbound()          {}
func (CallOffer) inbound()        {}
func (CallAnswer) inbound()       {}
func (CallICECandidate) inbound() {}
func (TypingStart) inbound()      {}
func (TypingStop) inbound()       {}

// DecodeInbound parses one wire frame into a typed event.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("bad envelope: %w", err)
	}

	switch env.Event {
	case "call:initiate":
		return decodePayload[CallInitiate](env)
	case "call:accept":
		return decodePayload[CallAccept](env)
	case "call:reject":
		return decodePayload[CallReject](env)
	case "call:end":
		return decodePayload[CallEnd](env)
	case "call:offer":
		return decodePayload[CallOffer](env)
	case "call:answer":
		return decodePayload[CallAnswer](env)
	case "call:ice-candidate":
		return decodePayload[CallICECandidate](env)
	case "typing:start":
		return decodePayload[TypingStart](env)
	case "typing:stop":
		return decodePayload[TypingStop](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodePayload[T Inbound](env envelope) (Inbound, error) {
	var v T
	if len(env.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("bad %s payload: %w", env.Event, err)
	}
	return v, nil
}

// Outbound is the closed set of server-to-client events. Each value knows
// its wire name; EncodeOutbound wraps it in the envelope.
type Outbound interface{ Event() string }

// OnlineUsers carries the complete current presence set.
type OnlineUsers []string

// NewMessage forwards a freshly persisted message to its receiver.
type NewMessage struct {
	domain.Message
}

type MessagesRead struct {
	ReadBy   string `json:"readBy"`
	SenderID string `json:"senderId"`
}

type IncomingCall struct {
	CallerID string          `json:"callerId"`
	CallType domain.CallType `json:"callType"`
}

type CallAccepted struct {
	ReceiverID string `json:"receiverId"`
}

type CallRejected struct {
	ReceiverID string `json:"receiverId"`
}

type CallEnded struct{}

type RelayedOffer struct {
	Offer    webrtc.SessionDescription `json:"offer"`
	SenderID string                    `json:"senderId"`
}

type RelayedAnswer struct {
	Answer   webrtc.SessionDescription `json:"answer"`
	SenderID string                    `json:"senderId"`
}

type RelayedCandidate struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	SenderID  string                  `json:"senderId"`
}

type PeerTyping struct {
	SenderID string `json:"senderId"`
}

type PeerStoppedTyping struct {
	SenderID string `json:"senderId"`
}

func (OnlineUsers) Event() string       { return "getOnlineUsers" }
func (NewMessage) Event() string        { return "newMessage" }
func (MessagesRead) Event() string      { return "messages:read" }
func (IncomingCall) Event() string      { return "call:incoming" }
func (CallAccepted) Event() string      { return "call:accepted" }
func (CallRejected) Event() string      { return "call:rejected" }
func (CallEnded) Event() string         { return "call:ended" }
func (RelayedOffer) Event() string      { return "call:offer" }
func (RelayedAnswer) Event() string     { return "call:answer" }
func (RelayedCandidate) Event() string  { return "call:ice-candidate" }
func (PeerTyping) Event() string        { return "typing:start" }
func (PeerStoppedTyping) Event() string { return "typing:stop" }

// EncodeOutbound renders an event as a wire frame.
func EncodeOutbound(ev Outbound) (Frame, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Event(), err)
	}
	frame, err := json.Marshal(envelope{Event: ev.Event(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return frame, nil
}
