package httpapi

import (
	"errors"
	"net/http"
	"time"

	"homecall/internal/history"
	"homecall/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal modules, return JSON.

type Handlers struct {
	Machine *session.Machine
	Ledger  *history.Ledger
}

// --- Call session ---

type startCallRequest struct {
	PeerID     string `json:"peer_id"`
	PeerName   string `json:"peer_name"`
	PeerAvatar string `json:"peer_avatar"`
	Modality   string `json:"modality"`
}

func (h Handlers) StartCall(c *gin.Context) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PeerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "peer_id required"})
		return
	}

	snap, err := h.Machine.StartCall(c.Request.Context(), session.Peer{
		ID:     req.PeerID,
		Name:   req.PeerName,
		Avatar: req.PeerAvatar,
	}, session.ParseModality(req.Modality))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrAlreadyInCall):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "already in a call"})
		case errors.Is(err, session.ErrChannelUnavailable):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "signaling unavailable"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call start failed"})
		}
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) AcceptCall(c *gin.Context) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	// Accepting outside incoming:ringing is a no-op; the current view is
	// returned either way so double-taps stay harmless.
	h.Machine.AcceptIncoming(c.Request.Context())
	c.JSON(http.StatusOK, snapshotBody(h.Machine.GetSnapshot()))
}

func (h Handlers) DeclineCall(c *gin.Context) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	h.Machine.DeclineIncoming(c.Request.Context())
	c.JSON(http.StatusOK, snapshotBody(h.Machine.GetSnapshot()))
}

func (h Handlers) EndCall(c *gin.Context) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	// One hangup endpoint covers both an unanswered outgoing attempt and a
	// live call; the machine picks the transition that applies.
	h.Machine.CancelOutgoing(c.Request.Context())
	h.Machine.EndActive(c.Request.Context())
	c.JSON(http.StatusOK, snapshotBody(h.Machine.GetSnapshot()))
}

func (h Handlers) ToggleMute(c *gin.Context) {
	h.toggle(c, func() *session.Snapshot { return h.Machine.ToggleMute() })
}

func (h Handlers) ToggleVideo(c *gin.Context) {
	h.toggle(c, func() *session.Snapshot { return h.Machine.ToggleVideo() })
}

func (h Handlers) ToggleHold(c *gin.Context) {
	h.toggle(c, func() *session.Snapshot { return h.Machine.ToggleHold() })
}

func (h Handlers) SwitchModality(c *gin.Context) {
	h.toggle(c, func() *session.Snapshot { return h.Machine.SwitchModality() })
}

func (h Handlers) toggle(c *gin.Context, apply func() *session.Snapshot) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	if snap := apply(); snap != nil {
		c.JSON(http.StatusOK, snap)
		return
	}
	// Silent no-op outside connected.
	c.JSON(http.StatusOK, snapshotBody(h.Machine.GetSnapshot()))
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Machine == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session machine not configured"})
		return
	}
	c.JSON(http.StatusOK, snapshotBody(h.Machine.GetSnapshot()))
}

// snapshotBody renders the idle state explicitly so clients never have to
// special-case an empty body.
func snapshotBody(snap *session.Snapshot) any {
	if snap == nil {
		return gin.H{"state": session.StateIdle}
	}
	return snap
}

// --- Call history ---

func (h Handlers) ListHistory(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}
	entries, err := h.Ledger.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h Handlers) HistorySummary(c *gin.Context) {
	if h.Ledger == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}

	var req history.SummaryRequest
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		req.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		req.To = t
	}

	sum, err := h.Ledger.Summarize(c.Request.Context(), req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}
