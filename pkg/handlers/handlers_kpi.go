package handlers

import (
	"net/http"

	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// ListCases lists unselected cases
func (h *Handler) ListCases(c *gin.Context) {
	cases, err := h.Assignments.ListCases(c.Request.Context(), currentActor(c), models.CaseStatus(query(c, "status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases, "count": len(cases)})
}

// CloseCase closes an unselected case
func (h *Handler) CloseCase(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
			return
		}
	}

	closed, err := h.Assignments.CloseCase(c.Request.Context(), currentActor(c), c.Param("id"), req.Notes)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, closed)
}

// WorkerKPI scores one worker over a period
func (h *Handler) WorkerKPI(c *gin.Context) {
	actor := currentActor(c)
	workerID := query(c, "worker_id", "workerId")
	if workerID == "" && actor.Role == models.RoleWorker {
		workerID = actor.UserID
	}

	p, err := h.KPI.Period(query(c, "period"), query(c, "from"), query(c, "to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.KPI.Worker(c.Request.Context(), actor, workerID, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// WorkerStreak returns the legacy consecutive-day cycle score
func (h *Handler) WorkerStreak(c *gin.Context) {
	actor := currentActor(c)
	workerID := query(c, "worker_id", "workerId")
	if workerID == "" && actor.Role == models.RoleWorker {
		workerID = actor.UserID
	}

	res, err := h.KPI.Streak(c.Request.Context(), actor, workerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// TeamKPI aggregates a supervisor's team over a period
func (h *Handler) TeamKPI(c *gin.Context) {
	actor := currentActor(c)
	supervisorID := query(c, "supervisor_id", "supervisorId")
	if supervisorID == "" && actor.Role == models.RoleTeamLeader {
		supervisorID = actor.UserID
	}
	if supervisorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "supervisor_id is required", "code": "VALIDATION", "field": "supervisor_id"})
		return
	}

	p, err := h.KPI.Period(query(c, "period"), query(c, "from"), query(c, "to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.KPI.Team(c.Request.Context(), actor, supervisorID, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
