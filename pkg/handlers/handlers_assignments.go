package handlers

import (
	"net/http"

	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// CreateAssignments creates a batch of assignments for one date
func (h *Handler) CreateAssignments(c *gin.Context) {
	var input models.CreateAssignmentsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
		return
	}

	result, err := h.Assignments.CreateBatch(c.Request.Context(), currentActor(c), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func filterFromQuery(c *gin.Context) models.AssignmentFilter {
	return models.AssignmentFilter{
		WorkerID: query(c, "worker_id", "workerId"),
		Team:     query(c, "team"),
		Date:     query(c, "date"),
		From:     query(c, "from"),
		To:       query(c, "to"),
		Status:   models.Status(query(c, "status")),
	}
}

// ListAssignments lists the assignments the caller may see
func (h *Handler) ListAssignments(c *gin.Context) {
	list, err := h.Assignments.List(c.Request.Context(), currentActor(c), filterFromQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list, "count": len(list)})
}

// ListMine lists the calling worker's own assignments
func (h *Handler) ListMine(c *gin.Context) {
	actor := currentActor(c)
	if actor.Role != models.RoleWorker {
		c.JSON(http.StatusForbidden, gin.H{"error": "only workers have assignments", "code": "FORBIDDEN"})
		return
	}
	list, err := h.Assignments.List(c.Request.Context(), actor, filterFromQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": list, "count": len(list)})
}

// Today returns the worker's assignment for the current date, or null
func (h *Handler) Today(c *gin.Context) {
	a, err := h.Assignments.Today(c.Request.Context(), currentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignment": a})
}

// CanSubmit reports whether the worker has something to submit against
func (h *Handler) CanSubmit(c *gin.Context) {
	res, err := h.Assignments.CanSubmit(c.Request.Context(), currentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetAssignment returns one assignment
func (h *Handler) GetAssignment(c *gin.Context) {
	a, err := h.Assignments.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateAssignment applies a status and/or notes change
func (h *Handler) UpdateAssignment(c *gin.Context) {
	var input models.UpdateAssignmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
		return
	}

	res, err := h.Assignments.Update(c.Request.Context(), currentActor(c), c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CancelAssignment withdraws a pending assignment
func (h *Handler) CancelAssignment(c *gin.Context) {
	res, err := h.Assignments.Cancel(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Sweep runs the overdue sweeper once
func (h *Handler) Sweep(c *gin.Context) {
	actor := currentActor(c)
	n, err := h.Assignments.Sweeper().Sweep(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.Logger.Info("sweep requested", "actor_id", actor.UserID, "actor_role", actor.Role, "transitioned", n)
	c.JSON(http.StatusOK, gin.H{"transitioned": n})
}
