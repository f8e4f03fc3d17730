package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arnavshah/readiness-api-go/pkg/assignment"
	"github.com/arnavshah/readiness-api-go/pkg/auth"
	"github.com/arnavshah/readiness-api-go/pkg/kpi"
	"github.com/arnavshah/readiness-api-go/pkg/metrics"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// Handler contains dependencies for the route handlers
type Handler struct {
	Assignments *assignment.Service
	KPI         *kpi.Engine
	Auth        *auth.Manager
	Store       *store.Store
	Metrics     *metrics.Collector
	Logger      *slog.Logger
}

// Routes mounts every endpoint on r
func (h *Handler) Routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Readiness Assignment API",
			"version": "1.0.0",
		})
	})
	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	r.POST("/auth/login", h.Login)

	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware(false), h.RequireRole(models.RoleAdmin))
	{
		admin.POST("/users", h.CreateUser)
	}

	// the sweep is the only route open to machine callers
	r.POST("/assignments/sweep", h.AuthMiddleware(true),
		h.RequireRole(models.RoleAdmin, models.RoleTeamLeader, models.RoleService), h.Sweep)

	api := r.Group("/")
	api.Use(h.AuthMiddleware(false))
	{
		api.POST("/assignments", h.CreateAssignments)
		api.POST("/assignments/validate", h.ValidateAssignments)
		api.GET("/assignments", h.ListAssignments)
		api.GET("/assignments/mine", h.ListMine)
		api.GET("/assignments/today", h.Today)
		api.GET("/assignments/can-submit", h.CanSubmit)
		api.GET("/assignments/sweep/stats", h.RequireRole(models.RoleAdmin, models.RoleTeamLeader), h.SweepStats)
		api.GET("/assignments/:id", h.GetAssignment)
		api.PATCH("/assignments/:id", h.UpdateAssignment)
		api.DELETE("/assignments/:id", h.CancelAssignment)

		api.GET("/unselected-cases", h.ListCases)
		api.POST("/unselected-cases/:id/close", h.CloseCase)

		api.GET("/kpi/worker", h.WorkerKPI)
		api.GET("/kpi/worker/streak", h.WorkerStreak)
		api.GET("/kpi/team", h.TeamKPI)
	}
}

// AuthMiddleware verifies the bearer token. With allowService an HMAC service
// key is accepted as well.
func (h *Handler) AuthMiddleware(allowService bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required", "code": "UNAUTHORIZED"})
			return
		}

		// Strip "Bearer " if present
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := h.Auth.VerifyToken(token)
		if err == nil {
			c.Set(actorKey, claims.Actor())
			c.Next()
			return
		}

		if allowService {
			if serviceID, kerr := h.Auth.VerifyHMACKey(token); kerr == nil {
				c.Set(actorKey, models.Actor{UserID: serviceID, Role: models.RoleService})
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "code": "UNAUTHORIZED"})
	}
}

// RequireRole rejects callers whose role is not listed
func (h *Handler) RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := currentActor(c)
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not permitted", "code": "FORBIDDEN"})
	}
}

func currentActor(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(models.Actor); ok {
			return a
		}
	}
	return models.Actor{}
}

// query returns the first non-empty parameter among names
func query(c *gin.Context, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(c.Query(n)); v != "" {
			return v
		}
	}
	return ""
}

// fail maps a service error to a response
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *assignment.ValidationError
	var eerr *assignment.EligibilityError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "code": "VALIDATION", "field": verr.Field})
	case errors.As(err, &eerr):
		c.JSON(http.StatusConflict, gin.H{
			"error":   eerr.Error(),
			"code":    "NOT_ELIGIBLE",
			"blocked": eerr.Blocks,
			"reasons": eerr.Reasons(),
		})
	case errors.Is(err, assignment.ErrImmutableRecord):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "IMMUTABLE_RECORD"})
	case errors.Is(err, assignment.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "INVALID_TRANSITION"})
	case errors.Is(err, assignment.ErrForbidden), errors.Is(err, kpi.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "FORBIDDEN"})
	case errors.Is(err, assignment.ErrNotFound), errors.Is(err, kpi.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, kpi.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
	default:
		h.Logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
	}
}
