package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"homecall/internal/signaling"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type recordingHandler struct {
	mu       sync.Mutex
	incoming []signaling.IncomingCall
	answered []signaling.CallAnswered
	ended    []signaling.CallEnded
	signals  []signaling.CallSignal
}

func (h *recordingHandler) HandleIncomingCall(_ context.Context, ev signaling.IncomingCall) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.incoming = append(h.incoming, ev)
}

func (h *recordingHandler) HandleCallAnswered(_ context.Context, ev signaling.CallAnswered) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.answered = append(h.answered, ev)
}

func (h *recordingHandler) HandleCallEnded(_ context.Context, ev signaling.CallEnded) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended = append(h.ended, ev)
}

func (h *recordingHandler) HandleCallSignal(_ context.Context, ev signaling.CallSignal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signals = append(h.signals, ev)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

// relayStub upgrades one connection and exposes it to the test body.
type relayStub struct {
	srv    *httptest.Server
	connCh chan *websocket.Conn
	auth   chan string
}

func newRelayStub(t *testing.T) *relayStub {
	t.Helper()
	stub := &relayStub{
		connCh: make(chan *websocket.Conn, 1),
		auth:   make(chan string, 1),
	}
	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		stub.connCh <- conn
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *relayStub) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func dialStub(t *testing.T, stub *relayStub, handler signaling.EventHandler) (*Client, *websocket.Conn) {
	t.Helper()
	client, err := Dial(context.Background(), Options{URL: stub.url(), Token: "device-token"}, handler, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-stub.connCh:
		return client, conn
	case <-time.After(2 * time.Second):
		t.Fatalf("relay never saw the connection")
		return nil, nil
	}
}

func TestDial_SendsBearerToken(t *testing.T) {
	stub := newRelayStub(t)
	dialStub(t, stub, &recordingHandler{})

	got := <-stub.auth
	if got != "Bearer device-token" {
		t.Fatalf("unexpected Authorization header: %q", got)
	}
}

func TestInboundEvents_DispatchedToHandler(t *testing.T) {
	stub := newRelayStub(t)
	handler := &recordingHandler{}
	_, conn := dialStub(t, stub, handler)

	frames := []Envelope{
		mustEnvelope(t, EventIncomingCall, map[string]any{
			"call_id": "c1", "caller_id": "peer-2", "caller_name": "Grandpa", "call_type": "video",
		}),
		mustEnvelope(t, EventCallAnswered, map[string]any{"call_id": "c1"}),
		mustEnvelope(t, EventCallSignal, map[string]any{
			"call_id": "c1", "payload": map[string]string{"sdp": "x"},
		}),
		mustEnvelope(t, EventCallEnded, map[string]any{"call_id": "c1"}),
	}
	for _, f := range frames {
		if err := conn.WriteJSON(f); err != nil {
			t.Fatalf("relay write: %v", err)
		}
	}

	waitFor(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.ended) == 1
	})

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.incoming) != 1 || handler.incoming[0].CallID != "c1" || handler.incoming[0].CallerName != "Grandpa" {
		t.Fatalf("unexpected incoming events: %+v", handler.incoming)
	}
	if len(handler.answered) != 1 || handler.answered[0].CallID != "c1" {
		t.Fatalf("unexpected answered events: %+v", handler.answered)
	}
	if len(handler.signals) != 1 || string(handler.signals[0].Payload) == "" {
		t.Fatalf("unexpected signal events: %+v", handler.signals)
	}
}

func TestOutboundIntents_ReachTheRelay(t *testing.T) {
	stub := newRelayStub(t)
	client, conn := dialStub(t, stub, &recordingHandler{})
	ctx := context.Background()

	if err := client.InitiateCall(ctx, "c9", "peer-1", "voice"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := client.AnswerCall(ctx, "c9", "peer-1", false); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := client.EndCall(ctx, "c9", "peer-1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := client.SendSignal(ctx, "c9", "peer-1", json.RawMessage(`{"ice":"y"}`)); err != nil {
		t.Fatalf("signal: %v", err)
	}

	wantEvents := []string{EventInitiateCall, EventAnswerCall, EventEndCall, EventCallSignal}
	for _, want := range wantEvents {
		var env Envelope
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("relay read: %v", err)
		}
		if env.Event != want {
			t.Fatalf("expected event %q, got %q", want, env.Event)
		}
	}
}

func TestConnectionDrop_MarksDisconnected(t *testing.T) {
	stub := newRelayStub(t)
	client, conn := dialStub(t, stub, &recordingHandler{})

	if !client.IsConnected() {
		t.Fatalf("expected connected after dial")
	}
	conn.Close()

	waitFor(t, func() bool { return !client.IsConnected() })

	if err := client.InitiateCall(context.Background(), "c1", "p", "voice"); err == nil {
		t.Fatalf("expected send failure after drop")
	}
}

func TestUnknownEvent_Ignored(t *testing.T) {
	stub := newRelayStub(t)
	handler := &recordingHandler{}
	client, conn := dialStub(t, stub, handler)

	if err := conn.WriteJSON(mustEnvelope(t, "presence-update", map[string]string{"user": "x"})); err != nil {
		t.Fatalf("relay write: %v", err)
	}
	if err := conn.WriteJSON(mustEnvelope(t, EventCallEnded, map[string]any{"call_id": "c1"})); err != nil {
		t.Fatalf("relay write: %v", err)
	}

	waitFor(t, func() bool {
		handler.mu.Lock()
		defer handler.mu.Unlock()
		return len(handler.ended) == 1
	})
	if !client.IsConnected() {
		t.Fatalf("unknown events must not kill the connection")
	}
}

func mustEnvelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	env, err := NewEnvelope(event, data)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	return env
}
