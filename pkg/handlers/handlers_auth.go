package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/arnavshah/readiness-api-go/pkg/auth"
	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Login exchanges a username and password for a bearer token
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
		return
	}

	user, err := h.Store.UserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "UNAUTHORIZED"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": "UNAUTHORIZED"})
		return
	}

	token, err := h.Auth.CreateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token", "code": "INTERNAL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "bearer",
		"role":         user.Role,
		"user_id":      user.ID,
	})
}

// CreateUser bootstraps an account
func (h *Handler) CreateUser(c *gin.Context) {
	var req models.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	switch {
	case req.Username == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required", "code": "VALIDATION", "field": "username"})
		return
	case len(req.Password) < 8:
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters", "code": "VALIDATION", "field": "password"})
		return
	case !req.Role.Valid():
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role", "code": "VALIDATION", "field": "role"})
		return
	case req.Role != models.RoleAdmin && strings.TrimSpace(req.Team) == "":
		c.JSON(http.StatusBadRequest, gin.H{"error": "team is required", "code": "VALIDATION", "field": "team"})
		return
	}

	hash, err := h.Auth.HashPassword(req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	user := database.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		Team:         req.Team,
		DisplayName:  req.DisplayName,
	}
	if err := h.Store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken", "code": "DUPLICATE"})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}
