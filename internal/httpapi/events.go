package httpapi

import (
	"net/http"
	"time"

	"homecall/internal/session"
	"homecall/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The coordinator serves a local UI only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CallEvents streams session snapshots over a WebSocket so screens can follow
// the call without polling. The current view is pushed on connect, then every
// change; an explicit idle frame is sent when the session clears.
func (h Handlers) CallEvents(c *gin.Context) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	log := logger.FromGin(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("events upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Snapshots are forwarded through a buffered channel so a slow screen
	// never blocks a state transition. If the buffer fills, stale frames are
	// dropped; the newest one always wins.
	frames := make(chan any, 8)

	push := func(snap *session.Snapshot) {
		body := snapshotBody(snap)
		select {
		case frames <- body:
			return
		default:
		}
		select {
		case <-frames:
		default:
		}
		select {
		case frames <- body:
		default:
		}
	}

	dispose := h.Machine.Subscribe(push)
	defer dispose()

	push(h.Machine.GetSnapshot())

	// Drain client frames so pings and close handshakes are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame := <-frames:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				log.Info("events stream closed", "err", err)
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
