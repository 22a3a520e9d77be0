package session

import (
	"errors"
	"time"
)

// State is the call session lifecycle state.
type State string

const (
	// StateIdle means no session exists.
	StateIdle State = "idle"
	// StateOutgoingConnecting means the signaling request is being sent.
	StateOutgoingConnecting State = "outgoing_connecting"
	// StateOutgoingRinging means the peer's device is alerting.
	StateOutgoingRinging State = "outgoing_ringing"
	// StateIncomingRinging means this device is alerting, awaiting a decision.
	StateIncomingRinging State = "incoming_ringing"
	// StateConnected means media is flowing; duration accounting is active.
	StateConnected State = "connected"
	// StateEnded is terminal; the session is retired after a short grace delay.
	StateEnded State = "ended"
)

func (s State) IsTerminal() bool { return s == StateEnded }

// IsRinging reports whether the ringer/haptics resource is held.
func (s State) IsRinging() bool {
	return s == StateOutgoingRinging || s == StateIncomingRinging
}

// awaitsAnswer reports whether the ring timeout clock applies.
func (s State) awaitsAnswer() bool {
	return s == StateOutgoingConnecting || s == StateOutgoingRinging || s == StateIncomingRinging
}

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Modality is the call media kind. It is mutable during a call; switching
// modality does not create a new session.
type Modality string

const (
	ModalityVoice Modality = "voice"
	ModalityVideo Modality = "video"
)

// ParseModality maps a wire call type to a Modality, defaulting to voice for
// anything unrecognized.
func ParseModality(v string) Modality {
	if v == string(ModalityVideo) {
		return ModalityVideo
	}
	return ModalityVoice
}

// Peer identifies the other participant. Single-peer only.
type Peer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Snapshot is an immutable view of the current call session, safe to hand to
// screens. Screens never mutate session state; they dispatch intents back into
// the machine.
type Snapshot struct {
	CallID    string    `json:"call_id"`
	Direction Direction `json:"direction"`
	Modality  Modality  `json:"modality"`
	Peer      Peer      `json:"peer"`
	State     State     `json:"state"`

	// StartedAt is when the session object was created; it feeds ringing
	// reasoning, not billed duration.
	StartedAt time.Time `json:"started_at"`
	// ConnectedAt is set exactly once, on the transition into connected.
	ConnectedAt *time.Time `json:"connected_at,omitempty"`

	// Local-only device flags; never part of session identity.
	Muted    bool `json:"muted"`
	VideoOff bool `json:"video_off"`
	OnHold   bool `json:"on_hold"`
}

var (
	// ErrAlreadyInCall rejects a start intent while a non-terminal session exists.
	ErrAlreadyInCall = errors.New("session: already in a call")
	// ErrChannelUnavailable rejects a start intent while signaling is down.
	ErrChannelUnavailable = errors.New("session: signaling channel unavailable")
)
