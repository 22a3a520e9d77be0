// Package ws is the WebSocket transport behind the signaling channel. It
// speaks the relay's envelope protocol and turns inbound frames into typed
// events for the session state machine.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"homecall/internal/signaling"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
)

// Client dials the signaling relay and implements signaling.Channel over one
// WebSocket connection. Writes are serialized; a single read pump dispatches
// inbound events to the handler. When the connection drops the client marks
// itself disconnected and stops; reconnecting means dialing a new Client.
type Client struct {
	conn    *websocket.Conn
	handler signaling.EventHandler
	log     *slog.Logger

	writeMu   sync.Mutex
	connected atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

// Options configures the relay handshake.
type Options struct {
	// URL is the relay WebSocket endpoint (ws:// or wss://).
	URL string
	// Token is the device token sent as an Authorization bearer header.
	Token string

	Dialer *websocket.Dialer
}

// Dial connects to the relay and starts the read pump. The handler receives
// every inbound event until the connection closes.
func Dial(ctx context.Context, opts Options, handler signaling.EventHandler, log *slog.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("ws: relay url is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("ws: event handler is required")
	}
	if log == nil {
		log = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %w (status %d)", opts.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", opts.URL, err)
	}

	c := &Client{
		conn:    conn,
		handler: handler,
		log:     log,
		done:    make(chan struct{}),
	}
	c.connected.Store(true)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.pingLoop()

	return c, nil
}

// IsConnected reports whether the socket is still usable. The state machine
// consults this before admitting an outgoing call attempt.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		close(c.done)

		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

// Done is closed when the read pump exits, however the connection ended.
func (c *Client) Done() <-chan struct{} { return c.done }

/* ===================== OUTBOUND ===================== */

func (c *Client) InitiateCall(ctx context.Context, callID, peerID, callType string) error {
	return c.send(ctx, EventInitiateCall, initiateCallData{
		CallID:   callID,
		CalleeID: peerID,
		CallType: callType,
	})
}

func (c *Client) AnswerCall(ctx context.Context, callID, peerID string, accepted bool) error {
	return c.send(ctx, EventAnswerCall, answerCallData{
		CallID:   callID,
		CallerID: peerID,
		Accepted: accepted,
	})
}

func (c *Client) EndCall(ctx context.Context, callID, peerID string) error {
	return c.send(ctx, EventEndCall, endCallData{
		CallID: callID,
		PeerID: peerID,
	})
}

func (c *Client) SendSignal(ctx context.Context, callID, peerID string, payload json.RawMessage) error {
	return c.send(ctx, EventCallSignal, callSignalData{
		CallID:  callID,
		PeerID:  peerID,
		Payload: payload,
	})
}

func (c *Client) send(ctx context.Context, event string, data any) error {
	if !c.connected.Load() {
		return fmt.Errorf("ws: not connected")
	}
	env, err := NewEnvelope(event, data)
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(env); err != nil {
		c.connected.Store(false)
		return fmt.Errorf("ws: write %s: %w", event, err)
	}
	return nil
}

/* ===================== INBOUND ===================== */

func (c *Client) readPump() {
	defer func() {
		c.connected.Store(false)
		c.Close()
	}()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("signaling read failed", "err", err)
			} else {
				c.log.Info("signaling connection closed")
			}
			return
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	ctx := context.Background()
	switch env.Event {
	case EventIncomingCall:
		var ev signaling.IncomingCall
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			c.log.Warn("bad incoming-call frame", "err", err)
			return
		}
		c.handler.HandleIncomingCall(ctx, ev)
	case EventCallAnswered:
		var ev signaling.CallAnswered
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			c.log.Warn("bad call-answered frame", "err", err)
			return
		}
		c.handler.HandleCallAnswered(ctx, ev)
	case EventCallEnded:
		var ev signaling.CallEnded
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			c.log.Warn("bad call-ended frame", "err", err)
			return
		}
		c.handler.HandleCallEnded(ctx, ev)
	case EventCallSignal:
		var ev signaling.CallSignal
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			c.log.Warn("bad call-signal frame", "err", err)
			return
		}
		c.handler.HandleCallSignal(ctx, ev)
	default:
		// Unknown events are forward-compatible noise.
		c.log.Debug("unhandled signaling event", "event", env.Event)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.connected.Store(false)
				return
			}
		case <-c.done:
			return
		}
	}
}
