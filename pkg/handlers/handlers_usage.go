package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SweepStats returns the recent daily sweep counters with totals
func (h *Handler) SweepStats(c *gin.Context) {
	stats, err := h.Assignments.SweepStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	// Calculate totals
	var totalRuns, totalTransitioned int64
	for _, s := range stats {
		totalRuns += int64(s.Runs)
		totalTransitioned += int64(s.Transitioned)
	}

	c.JSON(http.StatusOK, gin.H{
		"history": stats,
		"totals": gin.H{
			"runs":         totalRuns,
			"transitioned": totalTransitioned,
		},
	})
}
