package signaling

import (
	"context"
	"encoding/json"
)

// Channel is the outbound half of the signaling transport between two peers'
// call coordinators. The transport itself (socket lifecycle, reconnection,
// wire encoding) lives behind this interface; the call core only emits intents
// and observes connectivity.
//
// Emit methods must not block on the remote peer: an error means the intent
// could not be handed to the transport, not that the peer rejected it.
type Channel interface {
	// InitiateCall asks the signaling server to ring peerID for callID.
	InitiateCall(ctx context.Context, callID, peerID string, callType string) error

	// AnswerCall accepts or rejects an incoming call. The same wire signal
	// carries both an explicit decline and a busy rejection; the receiving
	// side cannot tell them apart.
	AnswerCall(ctx context.Context, callID, peerID string, accepted bool) error

	// EndCall tears down the call on the peer's side.
	EndCall(ctx context.Context, callID, peerID string) error

	// SendSignal relays an opaque media negotiation payload. The payload is
	// never interpreted by the call core.
	SendSignal(ctx context.Context, callID, peerID string, payload json.RawMessage) error

	// IsConnected reports transport connectivity at this instant. False means
	// no calls can be initiated.
	IsConnected() bool
}

// EventHandler receives inbound signaling events. Events for a given call must
// be delivered in the order the transport received them; the handler applies
// them without reordering or buffering.
type EventHandler interface {
	HandleIncomingCall(ctx context.Context, ev IncomingCall)
	HandleCallAnswered(ctx context.Context, ev CallAnswered)
	HandleCallEnded(ctx context.Context, ev CallEnded)
	HandleCallSignal(ctx context.Context, ev CallSignal)
}

// IncomingCall announces that a remote peer is calling this client.
type IncomingCall struct {
	CallID       string `json:"call_id"`
	CallerID     string `json:"caller_id"`
	CallerName   string `json:"caller_name"`
	CallerAvatar string `json:"caller_avatar,omitempty"`

	// CallType is "voice" or "video".
	CallType string `json:"call_type"`
}

// CallAnswered reports that the remote peer accepted callID.
type CallAnswered struct {
	CallID string `json:"call_id"`
}

// CallEnded reports that the remote peer ended, declined, or was busy for callID.
type CallEnded struct {
	CallID string `json:"call_id"`
}

// CallSignal carries an opaque media negotiation payload for callID.
type CallSignal struct {
	CallID  string          `json:"call_id"`
	Payload json.RawMessage `json:"payload"`
}
