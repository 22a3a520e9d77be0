package history

import "time"

// Entry is an immutable record of one completed call attempt.
//
// Invariants:
// - Entries are never updated or deleted.
// - Exactly one entry is written per terminated call session.
// - DurationSeconds is 0 unless Status is answered.
// - Ordering is by write time, newest first. A long-ringing missed call that
//   resolves late sorts by when it resolved, not by when it started ringing.
type Entry struct {
	ID       string `json:"id" db:"id"`
	PeerID   string `json:"peer_id" db:"peer_id"`
	PeerName string `json:"peer_name" db:"peer_name"`

	// Modality is "voice" or "video" as of termination; switching modality
	// mid-call does not split the entry.
	Modality  string `json:"modality" db:"modality"`
	Direction string `json:"direction" db:"direction"`

	Status Status `json:"status" db:"status"`

	// DurationSeconds counts connected time only, in whole seconds.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// Timestamp is the write time, which is also the ordering key.
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

type Status string

const (
	// StatusAnswered means the call connected; DurationSeconds is meaningful.
	StatusAnswered Status = "answered"
	// StatusMissed means an incoming attempt was never answered locally
	// (remote cancel, ring timeout, or busy rejection).
	StatusMissed Status = "missed"
	// StatusDeclined means the attempt was turned down: a local decline of an
	// incoming call, or an outgoing call that was cancelled, rejected, or
	// rang out without an answer.
	StatusDeclined Status = "declined"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAnswered, StatusMissed, StatusDeclined:
		return true
	default:
		return false
	}
}
