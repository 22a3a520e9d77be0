package ringer

import "log/slog"

// Profile selects what the device plays while a call is ringing.
type Profile string

const (
	// ProfileIncoming plays the ringtone and vibrates.
	ProfileIncoming Profile = "incoming"
	// ProfileOutgoing plays the ringback tone.
	ProfileOutgoing Profile = "outgoing"
)

// Driver is the scoped playback/vibration resource held while a call rings.
//
// Start must not block; actual audio routing happens elsewhere. Stop must be
// idempotent: the call core releases the driver unconditionally on every exit
// from a ringing state, including timeout and error paths.
type Driver interface {
	Start(profile Profile)
	Stop()
}

// Noop is a Driver that does nothing. Useful in tests and headless runs.
type Noop struct{}

func (Noop) Start(Profile) {}
func (Noop) Stop()         {}

// Slog logs start/stop instead of driving hardware. The real platform driver
// is injected by the host app.
type Slog struct {
	Log *slog.Logger
}

func (d Slog) Start(profile Profile) {
	if d.Log != nil {
		d.Log.Info("ringer start", "profile", string(profile))
	}
}

func (d Slog) Stop() {
	if d.Log != nil {
		d.Log.Info("ringer stop")
	}
}
