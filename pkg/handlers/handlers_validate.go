package handlers

import (
	"errors"
	"net/http"

	"github.com/arnavshah/readiness-api-go/pkg/assignment"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/gin-gonic/gin"
)

// ValidateAssignments dry-runs a batch: the same checks as creation, nothing written
func (h *Handler) ValidateAssignments(c *gin.Context) {
	var input models.CreateAssignmentsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	preview, err := h.Assignments.PreviewBatch(c.Request.Context(), currentActor(c), input)

	var verr *assignment.ValidationError
	var eerr *assignment.EligibilityError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, preview)
	case errors.As(err, &verr):
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": verr.Error(), "field": verr.Field})
	case errors.As(err, &eerr):
		c.JSON(http.StatusOK, gin.H{
			"valid":   false,
			"error":   eerr.Error(),
			"blocked": eerr.Blocks,
			"reasons": eerr.Reasons(),
		})
	default:
		h.fail(c, err)
	}
}
