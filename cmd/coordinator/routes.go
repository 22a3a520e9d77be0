package main

import (
	"homecall/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		// CALL routes: one session at a time, driven by the state machine.
		call := v1.Group("/call")
		{
			call.GET("", h.GetCall)
			call.GET("/events", h.CallEvents)

			call.POST("/start", h.StartCall)
			call.POST("/accept", h.AcceptCall)
			call.POST("/decline", h.DeclineCall)
			call.POST("/end", h.EndCall)

			call.POST("/mute", h.ToggleMute)
			call.POST("/video", h.ToggleVideo)
			call.POST("/hold", h.ToggleHold)
			call.POST("/switch", h.SwitchModality)
		}

		// HISTORY routes: read-only views over the append-only ledger.
		v1.GET("/history", h.ListHistory)
		v1.GET("/history/summary", h.HistorySummary)
	}
}
