package ws

import "encoding/json"

// Event names on the relay wire. The client emits the first four and
// receives the last four; call-signal flows in both directions.
const (
	EventInitiateCall = "initiate-call"
	EventAnswerCall   = "answer-call"
	EventEndCall      = "end-call"
	EventCallSignal   = "call-signal"

	EventIncomingCall = "incoming-call"
	EventCallAnswered = "call-answered"
	EventCallEnded    = "call-ended"
)

// Envelope is the one frame shape on the wire: an event name plus an
// event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

type initiateCallData struct {
	CallID   string `json:"call_id"`
	CalleeID string `json:"callee_id"`
	CallType string `json:"call_type"`
}

type answerCallData struct {
	CallID   string `json:"call_id"`
	CallerID string `json:"caller_id"`
	Accepted bool   `json:"accepted"`
}

type endCallData struct {
	CallID string `json:"call_id"`
	PeerID string `json:"peer_id"`
}

type callSignalData struct {
	CallID  string          `json:"call_id"`
	PeerID  string          `json:"peer_id"`
	Payload json.RawMessage `json:"payload"`
}
