package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/readiness-api-go/pkg/database"
	"github.com/arnavshah/readiness-api-go/pkg/models"
	"github.com/arnavshah/readiness-api-go/pkg/store"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var jwtAlgorithm = jwt.SigningMethodHS256

// TokenTTL is how long a bearer token stays valid
const TokenTTL = 24 * time.Hour

// Claims represents the JWT claims
type Claims struct {
	UserID   string      `json:"uid"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Team     string      `json:"team,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the caller identity
func (c *Claims) Actor() models.Actor {
	return models.Actor{UserID: c.UserID, Role: c.Role, Team: c.Team}
}

// Manager signs and verifies credentials
type Manager struct {
	jwtSecret    []byte
	masterSecret []byte
	bcryptCost   int
	now          func() time.Time
}

// NewManager creates a Manager. A zero bcryptCost uses 14.
func NewManager(jwtSecret, masterSecret string, bcryptCost int) *Manager {
	if bcryptCost == 0 {
		bcryptCost = 14
	}
	return &Manager{
		jwtSecret:    []byte(jwtSecret),
		masterSecret: []byte(masterSecret),
		bcryptCost:   bcryptCost,
		now:          time.Now,
	}
}

// HashPassword hashes a password using bcrypt
func (m *Manager) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for a user
func (m *Manager) CreateToken(u *database.User) (string, error) {
	claims := &Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Team:     u.Team,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(m.now().Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(m.jwtSecret)
}

// VerifyToken verifies a JWT token
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return m.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// GenerateHMACKey creates a signed service key using HMAC-SHA256
func (m *Manager) GenerateHMACKey(serviceID string) string {
	return GenerateHMACKey(m.masterSecret, serviceID)
}

// GenerateHMACKey signs serviceID with secret
func GenerateHMACKey(secret []byte, serviceID string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(serviceID))
	signature := hex.EncodeToString(h.Sum(nil))
	return serviceID + "." + signature
}

// VerifyHMACKey validates an HMAC-signed service key and returns the service id
func (m *Manager) VerifyHMACKey(key string) (string, error) {
	if len(m.masterSecret) == 0 {
		return "", errors.New("service keys are disabled")
	}
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", errors.New("invalid key format")
	}

	serviceID := parts[0]
	providedSignature := parts[1]

	h := hmac.New(sha256.New, m.masterSecret)
	h.Write([]byte(serviceID))
	expectedSignature := hex.EncodeToString(h.Sum(nil))

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(providedSignature), []byte(expectedSignature)) {
		return "", errors.New("invalid signature")
	}

	return serviceID, nil
}

// EnsureAdminExists creates the seed administrator when the users table is empty
func (m *Manager) EnsureAdminExists(ctx context.Context, st *store.Store, username, password string, logger *slog.Logger) error {
	count, err := st.CountUsers(ctx)
	if err != nil || count > 0 {
		return err
	}

	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = "admin123"
	}

	hash, err := m.HashPassword(password)
	if err != nil {
		return err
	}

	user := database.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := st.CreateUser(ctx, &user); err != nil {
		return err
	}
	logger.Info("default admin user created", "username", username)
	return nil
}
