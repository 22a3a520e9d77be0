package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"homecall/internal/history"
	"homecall/internal/ringer"
	"homecall/internal/signaling"

	"github.com/google/uuid"
)

// Options tunes the state machine timers. Zero values fall back to defaults.
type Options struct {
	// RingTimeout bounds connecting/ringing states; expiry forces the session
	// into ended instead of ringing indefinitely.
	RingTimeout time.Duration
	// EndedGrace is how long the ended snapshot stays visible before the
	// session clears back to idle.
	EndedGrace time.Duration
}

const (
	defaultRingTimeout = 45 * time.Second
	defaultEndedGrace  = 2 * time.Second
)

// Machine owns at most one call session at a time. It is the only writer of
// session state: user intents and inbound signaling events are applied as
// discrete transitions serialized under one mutex, so no two transitions ever
// overlap regardless of which goroutine delivers them.
//
// Transitions are synchronous and non-blocking. Anything that takes real time
// (ringtone playback, media setup) happens behind the injected collaborators,
// which are invoked as side effects and never awaited.
type Machine struct {
	opts    Options
	channel signaling.Channel
	ringer  ringer.Driver
	ledger  *history.Ledger
	log     *slog.Logger

	// clock is injectable for deterministic tests.
	clock func() time.Time

	mu         sync.Mutex
	cur        *callSession
	ringTimer  *time.Timer
	graceTimer *time.Timer

	listeners map[int]func(*Snapshot)
	nextSub   int

	signalSink func(signaling.CallSignal)
}

// callSession is the mutable record behind a Snapshot. It never escapes the
// machine.
type callSession struct {
	CallID      string
	Direction   Direction
	Modality    Modality
	Peer        Peer
	State       State
	StartedAt   time.Time
	ConnectedAt *time.Time

	Muted    bool
	VideoOff bool
	OnHold   bool

	logged bool
}

func (s *callSession) snapshot() *Snapshot {
	out := &Snapshot{
		CallID:    s.CallID,
		Direction: s.Direction,
		Modality:  s.Modality,
		Peer:      s.Peer,
		State:     s.State,
		StartedAt: s.StartedAt,
		Muted:     s.Muted,
		VideoOff:  s.VideoOff,
		OnHold:    s.OnHold,
	}
	if s.ConnectedAt != nil {
		t := *s.ConnectedAt
		out.ConnectedAt = &t
	}
	return out
}

func NewMachine(opts Options, channel signaling.Channel, rg ringer.Driver, ledger *history.Ledger, log *slog.Logger) *Machine {
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = defaultRingTimeout
	}
	if opts.EndedGrace <= 0 {
		opts.EndedGrace = defaultEndedGrace
	}
	if rg == nil {
		rg = ringer.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		opts:      opts,
		channel:   channel,
		ringer:    rg,
		ledger:    ledger,
		log:       log,
		clock:     time.Now,
		listeners: map[int]func(*Snapshot){},
	}
}

// SetChannel installs the signaling channel. The machine is the channel's
// event handler, so the two are wired in two steps at startup.
func (m *Machine) SetChannel(ch signaling.Channel) {
	m.mu.Lock()
	m.channel = ch
	m.mu.Unlock()
}

// SetSignalSink registers the consumer of opaque call-signal payloads (the
// media layer). The machine relays them without interpretation.
func (m *Machine) SetSignalSink(fn func(signaling.CallSignal)) {
	m.mu.Lock()
	m.signalSink = fn
	m.mu.Unlock()
}

/* ===================== USER INTENTS ===================== */

// StartCall originates an outgoing call. It fails with ErrAlreadyInCall while
// any non-terminal session exists (including the ended-grace window) and with
// ErrChannelUnavailable when signaling is down or the intent cannot be
// relayed; a rolled-back attempt leaves no history entry.
func (m *Machine) StartCall(ctx context.Context, peer Peer, modality Modality) (*Snapshot, error) {
	m.mu.Lock()
	if m.cur != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyInCall
	}
	if m.channel == nil || !m.channel.IsConnected() {
		m.mu.Unlock()
		return nil, ErrChannelUnavailable
	}

	s := &callSession{
		CallID:    uuid.NewString(),
		Direction: DirectionOutgoing,
		Modality:  modality,
		Peer:      peer,
		State:     StateOutgoingConnecting,
		StartedAt: m.clock(),
	}
	m.cur = s

	if err := m.channel.InitiateCall(ctx, s.CallID, peer.ID, string(modality)); err != nil {
		// The attempt never reached the peer: roll back without history.
		m.cur = nil
		m.mu.Unlock()
		m.publish(nil)
		return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}

	// The relay accepted the intent; the peer's channel is ringing. There is
	// no separate ring acknowledgment event on the wire.
	s.State = StateOutgoingRinging
	m.ringer.Start(ringer.ProfileOutgoing)
	m.armRingTimerLocked(s.CallID)

	snap := s.snapshot()
	m.mu.Unlock()
	m.publish(snap)
	return snap, nil
}

// AcceptIncoming answers a ringing incoming call. Outside incoming:ringing it
// is a no-op: UI double-taps during transitions must not surface a fault.
func (m *Machine) AcceptIncoming(ctx context.Context) *Snapshot {
	m.mu.Lock()
	if m.cur == nil || m.cur.State != StateIncomingRinging {
		m.mu.Unlock()
		return nil
	}
	s := m.cur

	if err := m.channel.AnswerCall(ctx, s.CallID, s.Peer.ID, true); err != nil {
		// Accept never reached the relay; stay ringing and let the timeout
		// resolve the session if the channel stays broken.
		m.log.Warn("accept relay failed", "call_id", s.CallID, "err", err)
		m.mu.Unlock()
		return nil
	}

	m.stopRingLocked()
	s.State = StateConnected
	t := m.clock()
	s.ConnectedAt = &t

	snap := s.snapshot()
	m.mu.Unlock()
	m.publish(snap)
	return snap
}

// DeclineIncoming rejects a ringing incoming call. Idempotent: calling it in
// any other state is a no-op.
func (m *Machine) DeclineIncoming(ctx context.Context) {
	m.mu.Lock()
	if m.cur == nil || m.cur.State != StateIncomingRinging {
		m.mu.Unlock()
		return
	}
	s := m.cur
	if err := m.channel.AnswerCall(ctx, s.CallID, s.Peer.ID, false); err != nil {
		m.log.Warn("decline relay failed", "call_id", s.CallID, "err", err)
	}
	snap := m.finishLocked(ctx, history.StatusDeclined)
	m.mu.Unlock()
	m.publish(snap)
}

// CancelOutgoing abandons an outgoing call that has not been answered.
// Idempotent outside outgoing:connecting / outgoing:ringing.
func (m *Machine) CancelOutgoing(ctx context.Context) {
	m.mu.Lock()
	if m.cur == nil || (m.cur.State != StateOutgoingConnecting && m.cur.State != StateOutgoingRinging) {
		m.mu.Unlock()
		return
	}
	s := m.cur
	if err := m.channel.EndCall(ctx, s.CallID, s.Peer.ID); err != nil {
		m.log.Warn("cancel relay failed", "call_id", s.CallID, "err", err)
	}
	snap := m.finishLocked(ctx, history.StatusDeclined)
	m.mu.Unlock()
	m.publish(snap)
}

// EndActive hangs up a connected call. Idempotent outside connected.
func (m *Machine) EndActive(ctx context.Context) {
	m.mu.Lock()
	if m.cur == nil || m.cur.State != StateConnected {
		m.mu.Unlock()
		return
	}
	s := m.cur
	if err := m.channel.EndCall(ctx, s.CallID, s.Peer.ID); err != nil {
		m.log.Warn("hangup relay failed", "call_id", s.CallID, "err", err)
	}
	snap := m.finishLocked(ctx, history.StatusAnswered)
	m.mu.Unlock()
	m.publish(snap)
}

// ToggleMute flips the local mute flag. Valid only while connected; otherwise
// a silent no-op.
func (m *Machine) ToggleMute() *Snapshot {
	return m.toggleConnected(func(s *callSession) { s.Muted = !s.Muted })
}

// ToggleVideo flips the local camera-off flag. Valid only while connected.
func (m *Machine) ToggleVideo() *Snapshot {
	return m.toggleConnected(func(s *callSession) { s.VideoOff = !s.VideoOff })
}

// ToggleHold flips the local hold flag. Valid only while connected.
func (m *Machine) ToggleHold() *Snapshot {
	return m.toggleConnected(func(s *callSession) { s.OnHold = !s.OnHold })
}

// SwitchModality flips voice<->video in place. It is a presentation change:
// state, ConnectedAt, and history are untouched.
func (m *Machine) SwitchModality() *Snapshot {
	return m.toggleConnected(func(s *callSession) {
		if s.Modality == ModalityVideo {
			s.Modality = ModalityVoice
		} else {
			s.Modality = ModalityVideo
		}
	})
}

func (m *Machine) toggleConnected(apply func(*callSession)) *Snapshot {
	m.mu.Lock()
	if m.cur == nil || m.cur.State != StateConnected {
		m.mu.Unlock()
		return nil
	}
	apply(m.cur)
	snap := m.cur.snapshot()
	m.mu.Unlock()
	m.publish(snap)
	return snap
}

// GetSnapshot returns the current session view, or nil when idle.
func (m *Machine) GetSnapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return nil
	}
	return m.cur.snapshot()
}

// Subscribe registers a snapshot-change listener and returns its disposer.
// Listeners receive nil when the session clears back to idle. Each screen must
// dispose its subscription on teardown.
func (m *Machine) Subscribe(fn func(*Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

/* ===================== INBOUND SIGNALING ===================== */

// HandleIncomingCall applies an inbound incoming-call event. While any session
// is non-terminal the new attempt is rejected busy: the same answer-call
// decline signal goes back on the wire and a missed entry is written for the
// new caller, without disturbing the active session.
func (m *Machine) HandleIncomingCall(ctx context.Context, ev signaling.IncomingCall) {
	m.mu.Lock()
	if m.cur != nil {
		if err := m.channel.AnswerCall(ctx, ev.CallID, ev.CallerID, false); err != nil {
			m.log.Warn("busy reply failed", "call_id", ev.CallID, "err", err)
		}
		if err := m.ledger.Append(ctx, history.Entry{
			PeerID:    ev.CallerID,
			PeerName:  ev.CallerName,
			Modality:  string(ParseModality(ev.CallType)),
			Direction: string(DirectionIncoming),
			Status:    history.StatusMissed,
			Timestamp: m.clock().UTC(),
		}); err != nil {
			m.log.Error("history append failed", "call_id", ev.CallID, "err", err)
		}
		m.mu.Unlock()
		return
	}

	s := &callSession{
		CallID:    ev.CallID,
		Direction: DirectionIncoming,
		Modality:  ParseModality(ev.CallType),
		Peer:      Peer{ID: ev.CallerID, Name: ev.CallerName, Avatar: ev.CallerAvatar},
		State:     StateIncomingRinging,
		StartedAt: m.clock(),
	}
	m.cur = s
	m.ringer.Start(ringer.ProfileIncoming)
	m.armRingTimerLocked(s.CallID)

	snap := s.snapshot()
	m.mu.Unlock()
	m.publish(snap)
}

// HandleCallAnswered applies an inbound call-answered event. A stale event for
// a different callId is ignored, and a duplicate accept while already
// connected is a no-op.
func (m *Machine) HandleCallAnswered(ctx context.Context, ev signaling.CallAnswered) {
	m.mu.Lock()
	if m.cur == nil || m.cur.CallID != ev.CallID {
		m.log.Debug("desync call-answered ignored", "call_id", ev.CallID)
		m.mu.Unlock()
		return
	}
	s := m.cur
	switch s.State {
	case StateOutgoingConnecting, StateOutgoingRinging:
		m.stopRingLocked()
		s.State = StateConnected
		t := m.clock()
		s.ConnectedAt = &t
	default:
		// Accept race or late delivery; first processed accept won.
		m.mu.Unlock()
		return
	}
	snap := s.snapshot()
	m.mu.Unlock()
	m.publish(snap)
}

// HandleCallEnded applies an inbound call-ended event. The history status
// depends on how far the session got: answered once connected, missed for an
// unanswered incoming ring, declined for an unanswered outgoing one. Duplicate
// terminal events never write a second entry.
func (m *Machine) HandleCallEnded(ctx context.Context, ev signaling.CallEnded) {
	m.mu.Lock()
	if m.cur == nil || m.cur.CallID != ev.CallID {
		m.log.Debug("desync call-ended ignored", "call_id", ev.CallID)
		m.mu.Unlock()
		return
	}

	var status history.Status
	switch m.cur.State {
	case StateIncomingRinging:
		status = history.StatusMissed
	case StateOutgoingConnecting, StateOutgoingRinging:
		status = history.StatusDeclined
	case StateConnected:
		status = history.StatusAnswered
	default:
		// Already terminal; the entry was written on the first signal.
		m.mu.Unlock()
		return
	}

	snap := m.finishLocked(ctx, status)
	m.mu.Unlock()
	m.publish(snap)
}

// HandleCallSignal relays an opaque media payload to the registered sink.
// Payloads for a callId other than the current session are dropped.
func (m *Machine) HandleCallSignal(ctx context.Context, ev signaling.CallSignal) {
	m.mu.Lock()
	if m.cur == nil || m.cur.CallID != ev.CallID {
		m.log.Debug("desync call-signal ignored", "call_id", ev.CallID)
		m.mu.Unlock()
		return
	}
	sink := m.signalSink
	m.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

/* ===================== TIMERS & TERMINATION ===================== */

func (m *Machine) armRingTimerLocked(callID string) {
	if m.ringTimer != nil {
		m.ringTimer.Stop()
	}
	m.ringTimer = time.AfterFunc(m.opts.RingTimeout, func() { m.onRingTimeout(callID) })
}

func (m *Machine) onRingTimeout(callID string) {
	m.mu.Lock()
	s := m.cur
	if s == nil || s.CallID != callID || !s.State.awaitsAnswer() {
		// A legitimate transition already left the ringing state.
		m.mu.Unlock()
		return
	}

	ctx := context.Background()
	var status history.Status
	if s.Direction == DirectionIncoming {
		status = history.StatusMissed
		if err := m.channel.AnswerCall(ctx, s.CallID, s.Peer.ID, false); err != nil {
			m.log.Warn("timeout reply failed", "call_id", s.CallID, "err", err)
		}
	} else {
		status = history.StatusDeclined
		if err := m.channel.EndCall(ctx, s.CallID, s.Peer.ID); err != nil {
			m.log.Warn("timeout hangup failed", "call_id", s.CallID, "err", err)
		}
	}
	m.log.Info("ring timeout", "call_id", s.CallID, "direction", string(s.Direction))

	snap := m.finishLocked(ctx, status)
	m.mu.Unlock()
	m.publish(snap)
}

// stopRingLocked cancels the ring timer and releases the ringer. Safe to call
// on any path out of a ringing state.
func (m *Machine) stopRingLocked() {
	if m.ringTimer != nil {
		m.ringTimer.Stop()
		m.ringTimer = nil
	}
	m.ringer.Stop()
}

// finishLocked moves the current session into ended: it releases the ringer,
// writes exactly one history entry, and schedules the grace-delay return to
// idle. Callers must hold the lock and publish the returned snapshot after
// unlocking.
func (m *Machine) finishLocked(ctx context.Context, status history.Status) *Snapshot {
	s := m.cur
	m.stopRingLocked()

	terminatedAt := m.clock()
	s.State = StateEnded

	if !s.logged {
		s.logged = true
		duration := 0
		if status == history.StatusAnswered && s.ConnectedAt != nil {
			duration = int(terminatedAt.Sub(*s.ConnectedAt).Seconds())
			if duration < 0 {
				duration = 0
			}
		}
		if err := m.ledger.Append(ctx, history.Entry{
			PeerID:          s.Peer.ID,
			PeerName:        s.Peer.Name,
			Modality:        string(s.Modality),
			Direction:       string(s.Direction),
			Status:          status,
			DurationSeconds: duration,
			Timestamp:       terminatedAt.UTC(),
		}); err != nil {
			m.log.Error("history append failed", "call_id", s.CallID, "err", err)
		}
	}

	if m.graceTimer != nil {
		m.graceTimer.Stop()
	}
	callID := s.CallID
	m.graceTimer = time.AfterFunc(m.opts.EndedGrace, func() { m.onGraceElapsed(callID) })

	return s.snapshot()
}

func (m *Machine) onGraceElapsed(callID string) {
	m.mu.Lock()
	if m.cur == nil || m.cur.CallID != callID || m.cur.State != StateEnded {
		m.mu.Unlock()
		return
	}
	m.cur = nil
	m.mu.Unlock()
	m.publish(nil)
}

// publish delivers a snapshot to all listeners outside the transition lock so
// a listener may safely dispatch intents back into the machine.
func (m *Machine) publish(snap *Snapshot) {
	m.mu.Lock()
	fns := make([]func(*Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
